package sqlclient

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" database/sql driver
	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/domain/gateway"
)

// NewMySQL opens a pooled MySQL connection for spec.ConnString (a DSN
// in the driver's own `user:pass@tcp(host:port)/db` form, or a
// `mysql://` URL with the scheme stripped by the caller).
func NewMySQL(spec gateway.ClientSpec, log zerolog.Logger) (*Client, error) {
	db, err := sql.Open("mysql", spec.ConnString)
	if err != nil {
		return nil, err
	}
	return New(spec.ID, gateway.ClientMySQL, db, spec.MaxConns, log), nil
}
