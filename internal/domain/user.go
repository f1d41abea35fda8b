package domain

import "time"

// Profile is a known bot user, retained so announcements can be fanned out.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	ChatID    int64
	UpdatedAt time.Time
}

// Admin is a member of the authorized set.
type Admin struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	AddedBy   int64
	AddedAt   time.Time
}
