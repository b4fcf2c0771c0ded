package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy
// it too, which is what the tests rely on.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Database struct {
	pool Pool
}

func NewDatabase(ctx context.Context, connStr string) (*Database, error) {
	// connection string should look like postgresql://localhost:5432/notekeeper?user=admn&password=passwd
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "failed pinging database")
	}

	return &Database{pool: pool}, nil
}

// NewDatabaseWithPool wraps an existing pool.
func NewDatabaseWithPool(pool Pool) *Database {
	return &Database{pool: pool}
}

func (d *Database) Close() {
	d.pool.Close()
}

// InitSchema creates the tables and indices if they don't exist yet.
func (d *Database) InitSchema(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS users (
	id          SERIAL PRIMARY KEY,
	telegram_id BIGINT NOT NULL UNIQUE,
	username    VARCHAR DEFAULT '',
	name        VARCHAR(255) NOT NULL,
	email       VARCHAR(255)
);

CREATE TABLE IF NOT EXISTS notes (
	id            SERIAL PRIMARY KEY,
	user_id       INTEGER NOT NULL,
	text          TEXT,
	processed     BOOL DEFAULT false,
	reminder_time TIMESTAMP WITH TIME ZONE NOT NULL,
	CONSTRAINT notes_user_fk
		FOREIGN KEY(user_id)
		REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS i_users ON users(telegram_id, name, email);

CREATE INDEX IF NOT EXISTS i_notes ON notes(user_id, reminder_time);`)
	if err != nil {
		return errors.Wrap(err, "failed creating schema")
	}

	return nil
}
