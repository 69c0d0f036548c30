package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ConnectionFactory hands out new database handles together with the
// identifier rules that statements for that database must follow.
type ConnectionFactory struct {
	cfg Config
}

func NewConnectionFactory(cfg Config) *ConnectionFactory { return &ConnectionFactory{cfg: cfg} }

// Create opens a new handle. The caller owns it and must Close it.
func (f *ConnectionFactory) Create(ctx context.Context) (*sqlx.DB, error) {
	db, err := Connect(ctx, f.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", f.cfg.Driver, err)
	}
	return sqlx.NewDb(db, f.cfg.Driver), nil
}

// Identifiers returns the quoting rules for this connection. An empty escape
// character falls back to the dialect default.
func (f *ConnectionFactory) Identifiers() Identifiers {
	d := f.cfg.dialect()
	esc := f.cfg.EscapeChar
	if esc == "" {
		esc = defaultEscape(d)
	}
	return Identifiers{
		EscapeChar:    esc,
		Prefix:        f.cfg.Prefix,
		Schema:        f.cfg.Schema,
		GuidConverter: f.cfg.GuidConverter,
		Dialect:       d,
	}
}

func (f *ConnectionFactory) Config() Config { return f.cfg }
