// Package sqlclient implements the postgres, mysql and sqlite client
// variants. mysql and sqlite run on database/sql and share Client's
// parameter binding and row decoding, so their files only wire a driver
// and DSN; postgres has its own pgxpool-backed PostgresClient that reuses
// bindValue.
package sqlclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/interpolate"
	"github.com/artpar/gatewayd/value"
)

// Client wraps a *sql.DB pool shared by one dialect's Execute.
type Client struct {
	id      string
	kind    gateway.ClientKind
	db      *sql.DB
	timeout int64 // seconds, 0 means use spec default already applied by caller
	log     zerolog.Logger
}

// New wraps an already-opened *sql.DB (dialect-specific dial happens in
// mysql.go/sqlite.go) with the shared Execute implementation.
func New(id string, kind gateway.ClientKind, db *sql.DB, maxConns int, log zerolog.Logger) *Client {
	db.SetMaxOpenConns(maxConns)
	return &Client{id: id, kind: kind, db: db, log: log.With().Str("client_id", id).Str("client_kind", string(kind)).Logger()}
}

// Execute implements client.Client. The query string is never
// interpolated (it is a prepared-statement template); only params are.
func (c *Client) Execute(ctx context.Context, spec gateway.SubrequestSpec, gctx *gateway.Context) (value.Value, error) {
	root := gctx.Root()

	args := make([]any, len(spec.Params))
	for i, p := range spec.Params {
		v, err := interpolate.Resolve(p, root)
		if err != nil {
			return value.Value{}, &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: spec.Name}
		}
		bound, err := bindValue(v)
		if err != nil {
			return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestSerialization, c.id, spec.Name, err.Error())
		}
		args[i] = bound
	}

	rows, err := c.db.QueryContext(ctx, spec.Query, args...)
	if err != nil {
		return value.Value{}, classifyError(c.id, spec.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, c.id, spec.Name, err.Error())
	}

	var resultRows []value.Value
	for rows.Next() {
		scanDest := make([]any, len(cols))
		scanBuf := make([]any, len(cols))
		for i := range scanDest {
			scanDest[i] = &scanBuf[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, c.id, spec.Name, err.Error())
		}
		obj := value.NewObject()
		for i, col := range cols {
			obj.Set(col, cellToValue(scanBuf[i]))
		}
		resultRows = append(resultRows, value.FromObject(obj))
	}
	if err := rows.Err(); err != nil {
		return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, c.id, spec.Name, err.Error())
	}

	out := value.NewObject()
	out.Set("client_id", value.String(c.id))
	out.Set("type", value.String("sql"))
	out.Set("rows", value.Array(resultRows))
	out.Set("row_count", value.Integer(int64(len(resultRows))))
	return value.FromObject(out), nil
}

// Close releases the pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// bindValue implements the binding rules of spec.md §4.3: String->text,
// Integer->int8, Float->float8, Bool->bool, Null->SQL NULL,
// Array/Object->JSON text.
func bindValue(v value.Value) (any, error) {
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindBool:
		return v.Bool(), nil
	case value.KindInteger:
		return v.Integer(), nil
	case value.KindFloat:
		return v.Float(), nil
	case value.KindString:
		return v.String(), nil
	case value.KindArray, value.KindObject:
		b, err := json.Marshal(value.ToAny(v))
		if err != nil {
			return nil, fmt.Errorf("marshal param as JSON: %w", err)
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("unsupported param kind")
	}
}

// cellToValue converts a database/sql scan result back into a Value,
// per spec.md §4.3: numeric types to Integer/Float, strings to String,
// nulls to Null, boolean to Bool, JSON-looking text left as String (the
// caller is responsible for further parsing if it configured a JSON
// column; the gateway does not guess column types).
func cellToValue(cell any) value.Value {
	switch t := cell.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case int64:
		return value.Integer(t)
	case int32:
		return value.Integer(int64(t))
	case int:
		return value.Integer(int64(t))
	case float64:
		return value.Float(t)
	case float32:
		return value.Float(float64(t))
	case []byte:
		return value.String(string(t))
	case string:
		return value.String(t)
	default:
		return value.String(fmt.Sprintf("%v", t))
	}
}

// classifyError normalizes a database/sql error into the SubrequestError
// taxonomy. Connection-establishment failures surface as Connect;
// everything else (syntax errors, constraint violations) as Backend.
func classifyError(clientID, subrequestID string, err error) *gatewayerr.SubrequestError {
	if err == context.DeadlineExceeded {
		return gatewayerr.NewSubrequestError(gatewayerr.SubrequestTimeout, clientID, subrequestID, err.Error())
	}
	if err == sql.ErrConnDone || err == sql.ErrTxDone {
		return gatewayerr.NewSubrequestError(gatewayerr.SubrequestConnect, clientID, subrequestID, err.Error())
	}
	return gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, clientID, subrequestID, err.Error())
}
