package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type PortalSession struct {
	Code         string
	Email        string
	SessionToken string
	Name         string
	Program      string
	Level        string
	CreatedAt    int64
}

const upsertSession = `
INSERT INTO portal_sessions (code, email, session_token, name, program, level, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (code) DO UPDATE SET
    email = excluded.email,
    session_token = excluded.session_token,
    name = excluded.name,
    program = excluded.program,
    level = excluded.level,
    created_at = excluded.created_at
`

func (q *Queries) UpsertSession(ctx context.Context, arg PortalSession) error {
	_, err := q.db.ExecContext(ctx, upsertSession,
		arg.Code,
		arg.Email,
		arg.SessionToken,
		arg.Name,
		arg.Program,
		arg.Level,
		arg.CreatedAt,
	)
	return err
}

const getSession = `
SELECT code, email, session_token, name, program, level, created_at
FROM portal_sessions
WHERE code = ?
`

func (q *Queries) GetSession(ctx context.Context, code string) (PortalSession, error) {
	row := q.db.QueryRowContext(ctx, getSession, code)
	var s PortalSession
	err := row.Scan(
		&s.Code,
		&s.Email,
		&s.SessionToken,
		&s.Name,
		&s.Program,
		&s.Level,
		&s.CreatedAt,
	)
	return s, err
}

const deleteSession = `
DELETE FROM portal_sessions WHERE code = ?
`

func (q *Queries) DeleteSession(ctx context.Context, code string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, code)
	return err
}
