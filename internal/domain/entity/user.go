package entity

import "time"

// User is a bot user, keyed internally by UUID and externally by the
// Telegram account id.
type User struct {
	ID                string
	TelegramID        int64
	PreferredCurrency string // empty until the user corrects a currency
	CreatedAt         time.Time
}

// WhitelistEntry is an access-control record. Usernames are stored
// normalized: no leading @, lower case.
type WhitelistEntry struct {
	ID        string
	Username  string
	AddedDate time.Time
	Notes     string
}
