package keyboard

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback actions carried in inline button data. Group-message buttons embed
// the order id after a colon so an old message always acts on its own order.
const (
	ActionSelectType     = "type"
	ActionConfirmOrder   = "confirm_order"
	ActionCancelOrder    = "cancel_order"
	ActionClaim          = "take"
	ActionDecline        = "decline"
	ActionApprovePayment = "approve_payment"
	ActionRejectPayment  = "reject_payment"
	ActionUploadReceipt  = "upload_receipt"
	ActionComplete       = "complete"

	ActionAdminMenu      = "admin_menu"
	ActionAdminStats     = "admin_stats"
	ActionAdminBroadcast = "admin_broadcast"
	ActionAdminAdd       = "admin_add"
	ActionAdminRemove    = "admin_remove"
	ActionRemoveAdmin    = "remove_admin"
	ActionAdminList      = "admin_list"
	ActionAdminComplete  = "admin_complete"
)

// FormatCallback encodes an action and order id as callback data.
func FormatCallback(action string, orderID int64) string {
	return fmt.Sprintf("%s:%d", action, orderID)
}

// ParseCallback splits callback data into action and order id. Telebot
// prefixes unique-button data with \f; strip it before parsing.
func ParseCallback(data string) (string, int64, error) {
	data = strings.TrimPrefix(data, "\f")

	action, rawID, found := strings.Cut(data, ":")
	if !found {
		return action, 0, nil
	}

	orderID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("parse callback %q: %w", data, err)
	}

	return action, orderID, nil
}
