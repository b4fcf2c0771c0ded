package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
)

var clk = clock.New()

// EnsureUser creates a user record for the Telegram account or refreshes the
// username and display name of an existing one. Called for every incoming
// update, so the users table always has a row for anyone who ever talked to
// the bot.
func (d *Database) EnsureUser(ctx context.Context, telegramID int64, username, name string) (*User, error) {
	row := d.pool.QueryRow(ctx, `INSERT INTO users(telegram_id, username, name)
VALUES($1, $2, $3)
ON CONFLICT (telegram_id) DO UPDATE SET username=$2, name=$3
RETURNING id, telegram_id, username, name, email`, telegramID, username, name)

	usr, err := scanUser(row)
	if err != nil {
		return nil, errors.Wrap(err, "failed upserting user")
	}

	return usr, nil
}

// UserByID fetches a user by row ID. Returns nil without an error when no
// such user exists.
func (d *Database) UserByID(ctx context.Context, id int64) (*User, error) {
	row := d.pool.QueryRow(ctx, `SELECT id, telegram_id, username, name, email
FROM users WHERE id=$1`, id)

	usr, err := scanUser(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "failed fetching user")
	}

	return usr, nil
}

// SetEmail stores the registration e-mail of the Telegram account.
func (d *Database) SetEmail(ctx context.Context, telegramID int64, email string) error {
	if _, err := d.pool.Exec(ctx, `UPDATE users SET email=$1 WHERE telegram_id=$2`, email, telegramID); err != nil {
		return errors.Wrap(err, "failed updating email")
	}

	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var usr User
	var email *string

	if err := row.Scan(&usr.ID, &usr.TelegramID, &usr.Username, &usr.Name, &email); err != nil {
		return nil, err
	}

	if email != nil {
		usr.Email = *email
	}

	return &usr, nil
}

// AddNote persists a new unprocessed note.
func (d *Database) AddNote(ctx context.Context, userID int64, text string, at time.Time) error {
	if _, err := d.pool.Exec(ctx, `INSERT INTO notes(user_id, text, reminder_time)
VALUES($1, $2, $3)`, userID, text, at); err != nil {
		return errors.Wrap(err, "failed to add note")
	}

	return nil
}

// NotesByUser returns all notes of the user ordered by reminder time.
func (d *Database) NotesByUser(ctx context.Context, userID int64) ([]Note, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, user_id, text, processed, reminder_time
FROM notes
WHERE user_id=$1
ORDER BY reminder_time`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

// DueSoon returns unprocessed notes whose reminder time is within the given
// window from now.
func (d *Database) DueSoon(ctx context.Context, window time.Duration) ([]Note, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, user_id, text, processed, reminder_time
FROM notes
WHERE reminder_time<=$1 AND NOT processed`, clk.Now().UTC().Add(window))
	if err != nil {
		return nil, errors.Wrap(err, "failed querying due notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

// MarkProcessed flips the processed flag of the note. The flag is never
// reset, so a note is reminded about at most once.
func (d *Database) MarkProcessed(ctx context.Context, noteID int64) error {
	if _, err := d.pool.Exec(ctx, `UPDATE notes SET processed=TRUE WHERE id=$1`, noteID); err != nil {
		return errors.Wrap(err, "failed marking note processed")
	}

	return nil
}

func scanNotes(rows pgx.Rows) ([]Note, error) {
	var notes []Note
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.UserID, &note.Text, &note.Processed, &note.ReminderTime); err != nil {
			return nil, errors.Wrap(err, "failed scanning note")
		}

		notes = append(notes, note)
	}

	return notes, rows.Err()
}
