package customers

import "time"

// Customer records are owned by the CRM side; the ledger only reads them.
type Customer struct {
	ID             int64
	FullName       string
	Phone          string
	TelegramChatID int64
	CreatedAt      time.Time
}
