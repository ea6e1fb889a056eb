package sqlclient

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/domain/gateway"
)

// NewSQLite opens a SQLite connection for spec.Path. A single shared
// connection is used when the path is ":memory:", since each new
// connection to an in-memory database otherwise sees an empty database.
func NewSQLite(spec gateway.ClientSpec, log zerolog.Logger) (*Client, error) {
	db, err := sql.Open("sqlite3", spec.Path)
	if err != nil {
		return nil, err
	}
	maxConns := spec.MaxConns
	if spec.Path == ":memory:" {
		maxConns = 1
	}
	return New(spec.ID, gateway.ClientSQLite, db, maxConns, log), nil
}
