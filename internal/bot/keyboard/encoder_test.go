package keyboard

import "testing"

func TestFormatCallback(t *testing.T) {
	if got := FormatCallback(ActionClaim, 17); got != "take:17" {
		t.Fatalf("expected take:17, got %q", got)
	}
}

func TestParseCallback(t *testing.T) {
	testCases := []struct {
		name      string
		data      string
		action    string
		orderID   int64
		expectErr bool
	}{
		{name: "action with id", data: "take:17", action: ActionClaim, orderID: 17},
		{name: "telebot unique prefix", data: "\fdecline:3", action: ActionDecline, orderID: 3},
		{name: "action only", data: "admin_stats", action: ActionAdminStats, orderID: 0},
		{name: "type selection carries code not id", data: "type:homework", expectErr: true},
		{name: "garbage id", data: "take:abc", expectErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			action, orderID, err := ParseCallback(tc.data)
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.data)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.data, err)
			}
			if action != tc.action || orderID != tc.orderID {
				t.Fatalf("expected (%s, %d), got (%s, %d)", tc.action, tc.orderID, action, orderID)
			}
		})
	}
}

func TestCallbackRoundTrip(t *testing.T) {
	for _, action := range []string{ActionClaim, ActionDecline, ActionApprovePayment, ActionRejectPayment, ActionComplete} {
		data := FormatCallback(action, 99)
		parsed, orderID, err := ParseCallback(data)
		if err != nil {
			t.Fatalf("round trip %q: %v", data, err)
		}
		if parsed != action || orderID != 99 {
			t.Fatalf("round trip %q: got (%s, %d)", data, parsed, orderID)
		}
	}
}
