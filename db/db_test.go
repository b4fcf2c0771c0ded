package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*Database, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewDatabaseWithPool(mock), mock
}

func userRows(id, telegramID int64, username, name string, email *string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "telegram_id", "username", "name", "email"}).
		AddRow(id, telegramID, username, name, email)
}

func TestEnsureUser(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(int64(42), "jdoe", "John Doe").
		WillReturnRows(userRows(1, 42, "jdoe", "John Doe", nil))

	usr, err := d.EnsureUser(context.Background(), 42, "jdoe", "John Doe")
	require.NoError(t, err)
	assert.Equal(t, int64(1), usr.ID)
	assert.Equal(t, int64(42), usr.TelegramID)
	assert.False(t, usr.Registered())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserByIDMissing(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectQuery("SELECT id, telegram_id, username, name, email").
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	usr, err := d.UserByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, usr)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserByIDRegistered(t *testing.T) {
	d, mock := newMockDB(t)

	email := "a.b@example.com"
	mock.ExpectQuery("SELECT id, telegram_id, username, name, email").
		WithArgs(int64(1)).
		WillReturnRows(userRows(1, 42, "jdoe", "John Doe", &email))

	usr, err := d.UserByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, usr)
	assert.Equal(t, email, usr.Email)
	assert.True(t, usr.Registered())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetEmail(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectExec("UPDATE users SET email").
		WithArgs("a.b@example.com", int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, d.SetEmail(context.Background(), 42, "a.b@example.com"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddNote(t *testing.T) {
	d, mock := newMockDB(t)

	due := time.Date(2024, 8, 1, 12, 10, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO notes").
		WithArgs(int64(1), "Buy milk", due).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, d.AddNote(context.Background(), 1, "Buy milk", due))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueSoon(t *testing.T) {
	d, mock := newMockDB(t)

	due := time.Now().Add(5 * time.Minute)
	mock.ExpectQuery("SELECT id, user_id, text, processed, reminder_time").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "text", "processed", "reminder_time"}).
			AddRow(int64(3), int64(1), "Buy milk", false, due))

	notes, err := d.DueSoon(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, int64(3), notes[0].ID)
	assert.False(t, notes[0].Processed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessed(t *testing.T) {
	d, mock := newMockDB(t)

	mock.ExpectExec("UPDATE notes SET processed").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, d.MarkProcessed(context.Background(), 3))
	require.NoError(t, mock.ExpectationsWereMet())
}
