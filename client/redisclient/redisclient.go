// Package redisclient implements the Redis client variant of the
// uniform client contract, per spec.md §4.3.
package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/gatewayerr"
	"github.com/artpar/gatewayd/interpolate"
	"github.com/artpar/gatewayd/value"
)

// Client executes get/set/del/exists/hget/hset operations against one
// Redis instance.
type Client struct {
	id  string
	rdb *redis.Client
	log zerolog.Logger
}

// New parses spec.ConnString (a `redis://` or `rediss://` URL) and
// opens a pooled client sized by spec.MaxConns.
func New(spec gateway.ClientSpec, log zerolog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(spec.ConnString)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = spec.MaxConns
	opts.MinIdleConns = spec.MinConns
	opts.DialTimeout = spec.Timeout
	return &Client{
		id:  spec.ID,
		rdb: redis.NewClient(opts),
		log: log.With().Str("client_id", spec.ID).Str("client_kind", "redis").Logger(),
	}, nil
}

// Execute implements client.Client.
func (c *Client) Execute(ctx context.Context, spec gateway.SubrequestSpec, gctx *gateway.Context) (value.Value, error) {
	root := gctx.Root()

	key, err := interpolate.ResolveString(spec.Key, root)
	if err != nil {
		return value.Value{}, &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: spec.Name}
	}

	switch spec.RedisOp {
	case "get":
		res, err := c.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return resultEnvelope(c.id, "value", value.Null()), nil
		}
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		return resultEnvelope(c.id, "value", value.String(res)), nil

	case "set":
		v, err := resolveRedisValue(spec.Value, root, spec.Name)
		if err != nil {
			return value.Value{}, err
		}
		var expiration time.Duration
		if spec.Expiration != nil {
			expiration = time.Duration(*spec.Expiration) * time.Second
		}
		if err := c.rdb.Set(ctx, key, v, expiration).Err(); err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		return resultEnvelope(c.id, "value", value.String(v)), nil

	case "del":
		n, err := c.rdb.Del(ctx, key).Result()
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		return resultEnvelope(c.id, "deleted", value.Integer(n)), nil

	case "exists":
		n, err := c.rdb.Exists(ctx, key).Result()
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		return resultEnvelope(c.id, "exists", value.Bool(n > 0)), nil

	case "hget":
		field, err := interpolate.ResolveString(spec.Field, root)
		if err != nil {
			return value.Value{}, &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: spec.Name}
		}
		res, err := c.rdb.HGet(ctx, key, field).Result()
		if errors.Is(err, redis.Nil) {
			return resultEnvelope(c.id, "value", value.Null()), nil
		}
		if err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		return resultEnvelope(c.id, "value", value.String(res)), nil

	case "hset":
		field, err := interpolate.ResolveString(spec.Field, root)
		if err != nil {
			return value.Value{}, &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: spec.Name}
		}
		v, err := resolveRedisValue(spec.Value, root, spec.Name)
		if err != nil {
			return value.Value{}, err
		}
		if err := c.rdb.HSet(ctx, key, field, v).Err(); err != nil {
			return value.Value{}, classifyError(c.id, spec.Name, err)
		}
		return resultEnvelope(c.id, "value", value.String(v)), nil

	default:
		return value.Value{}, gatewayerr.NewConfigError("redisclient: unknown operation %q", spec.RedisOp)
	}
}

// Close closes the pooled connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func resultEnvelope(clientID, field string, v value.Value) value.Value {
	out := value.NewObject()
	out.Set("client_id", value.String(clientID))
	out.Set("type", value.String("redis"))
	out.Set(field, v)
	return value.FromObject(out)
}

// resolveRedisValue interpolates spec.Value (a string template); a
// non-String resolved Value is JSON-serialized, per spec.md §4.3.
func resolveRedisValue(raw any, root value.Value, subrequestID string) (string, error) {
	expr, ok := raw.(string)
	if !ok {
		b, err := json.Marshal(raw)
		if err != nil {
			return "", gatewayerr.NewSubrequestError(gatewayerr.SubrequestSerialization, "", subrequestID, err.Error())
		}
		expr = string(b)
	}
	v, err := interpolate.Resolve(expr, root)
	if err != nil {
		return "", &gatewayerr.InterpolationError{Message: err.Error(), SubrequestID: subrequestID}
	}
	if v.Kind() == value.KindString {
		return v.String(), nil
	}
	b, err := json.Marshal(value.ToAny(v))
	if err != nil {
		return "", gatewayerr.NewSubrequestError(gatewayerr.SubrequestSerialization, "", subrequestID, err.Error())
	}
	return string(b), nil
}

func classifyError(clientID, subrequestID string, err error) *gatewayerr.SubrequestError {
	if errors.Is(err, context.DeadlineExceeded) {
		return gatewayerr.NewSubrequestError(gatewayerr.SubrequestTimeout, clientID, subrequestID, err.Error())
	}
	return gatewayerr.NewSubrequestError(gatewayerr.SubrequestConnect, clientID, subrequestID, err.Error())
}
