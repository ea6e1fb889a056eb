package sqlclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/interpolate"
	"github.com/artpar/gatewayd/value"
)

// PostgresClient executes subrequests against a pgxpool.Pool. It
// implements client.Client directly rather than through the shared
// database/sql Client, since pgx's native row decoding avoids a
// database/sql round trip.
type PostgresClient struct {
	id   string
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres connects to spec.ConnString (a `postgres://` DSN),
// applying spec's min/max connection bounds, grounded on the pattern
// used to build a pooled store in the wider example pack.
func NewPostgres(ctx context.Context, spec gateway.ClientSpec, log zerolog.Logger) (*PostgresClient, error) {
	cfg, err := pgxpool.ParseConfig(spec.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if spec.MaxConns > 0 {
		cfg.MaxConns = int32(spec.MaxConns)
	}
	if spec.MinConns > 0 {
		cfg.MinConns = int32(spec.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresClient{
		id:   spec.ID,
		pool: pool,
		log:  log.With().Str("client_id", spec.ID).Str("client_kind", "postgres").Logger(),
	}, nil
}

// Execute implements client.Client.
func (c *PostgresClient) Execute(ctx context.Context, spec gateway.SubrequestSpec, gctx *gateway.Context) (value.Value, error) {
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

	rows, err := c.pool.Query(ctx, spec.Query, args...)
	if err != nil {
		return value.Value{}, classifyPgxError(c.id, spec.Name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var resultRows []value.Value
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return value.Value{}, gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, c.id, spec.Name, err.Error())
		}
		obj := value.NewObject()
		for i, f := range fields {
			obj.Set(string(f.Name), pgxCellToValue(vals[i]))
		}
		resultRows = append(resultRows, value.FromObject(obj))
	}
	if err := rows.Err(); err != nil {
		return value.Value{}, classifyPgxError(c.id, spec.Name, err)
	}

	out := value.NewObject()
	out.Set("client_id", value.String(c.id))
	out.Set("type", value.String("sql"))
	out.Set("rows", value.Array(resultRows))
	out.Set("row_count", value.Integer(int64(len(resultRows))))
	return value.FromObject(out), nil
}

// Close closes the pool.
func (c *PostgresClient) Close() error {
	c.pool.Close()
	return nil
}

func pgxCellToValue(cell any) value.Value {
	switch t := cell.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(t)
	case int16:
		return value.Integer(int64(t))
	case int32:
		return value.Integer(int64(t))
	case int64:
		return value.Integer(t)
	case float32:
		return value.Float(float64(t))
	case float64:
		return value.Float(t)
	case string:
		return value.String(t)
	case []byte:
		return value.String(string(t))
	case [16]byte: // uuid
		return value.String(fmt.Sprintf("%x", t))
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return value.String(fmt.Sprintf("%v", t))
		}
		v, err := value.ParseJSON(b)
		if err != nil {
			return value.String(fmt.Sprintf("%v", t))
		}
		return v
	}
}

func classifyPgxError(clientID, subrequestID string, err error) *gatewayerr.SubrequestError {
	if err == context.DeadlineExceeded {
		return gatewayerr.NewSubrequestError(gatewayerr.SubrequestTimeout, clientID, subrequestID, err.Error())
	}
	if err == pgx.ErrNoRows {
		return gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, clientID, subrequestID, err.Error())
	}
	return gatewayerr.NewSubrequestError(gatewayerr.SubrequestBackend, clientID, subrequestID, err.Error())
}
