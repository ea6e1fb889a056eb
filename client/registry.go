package client

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/gatewayd/client/httpclient"
	"github.com/artpar/gatewayd/client/mongoclient"
	"github.com/artpar/gatewayd/client/redisclient"
	"github.com/artpar/gatewayd/client/sqlclient"
	"github.com/artpar/gatewayd/domain/gateway"
)

// Build dials/opens one Client per entry in specs, keyed by ClientSpec.ID,
// and returns a ready Registry. On any construction failure it closes the
// clients already opened before returning the error.
func Build(ctx context.Context, specs map[string]gateway.ClientSpec, log zerolog.Logger) (*Registry, error) {
	clients := make(map[string]Client, len(specs))

	closeAll := func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}

	for id, spec := range specs {
		spec.ID = id
		spec = spec.WithDefaults()

		c, err := buildOne(ctx, spec, log)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("client %q: %w", id, err)
		}
		clients[id] = c
		specs[id] = spec
	}

	return NewRegistry(clients, specs), nil
}

func buildOne(ctx context.Context, spec gateway.ClientSpec, log zerolog.Logger) (Client, error) {
	switch spec.Kind {
	case gateway.ClientHTTP:
		return httpclient.New(spec, log)
	case gateway.ClientPostgres:
		return sqlclient.NewPostgres(ctx, spec, log)
	case gateway.ClientMySQL:
		return sqlclient.NewMySQL(spec, log)
	case gateway.ClientSQLite:
		return sqlclient.NewSQLite(spec, log)
	case gateway.ClientMongo:
		return mongoclient.New(ctx, spec, log)
	case gateway.ClientRedis:
		return redisclient.New(spec, log)
	default:
		return nil, fmt.Errorf("unknown client kind %q", spec.Kind)
	}
}
