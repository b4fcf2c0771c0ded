package db

import "time"

type User struct {
	ID         int64  // row ID, referenced by notes
	TelegramID int64  // Telegram account ID, unique
	Username   string
	Name       string
	Email      string // empty until the user registers
}

// Registered reports whether the user has completed registration by
// providing an e-mail address.
func (u *User) Registered() bool {
	return u.Email != ""
}

type Note struct {
	ID           int64
	UserID       int64
	Text         string
	Processed    bool      // reminder has been delivered
	ReminderTime time.Time // when the note is due
}
