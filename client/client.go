// Package client defines the uniform backend contract every transport
// (HTTP, SQL dialects, MongoDB, Redis) implements, per spec.md §4.3.
package client

import (
	"context"

	"github.com/artpar/gatewayd/domain/gateway"
	"github.com/artpar/gatewayd/value"
)

// Client is the one operation every backend adapter exposes:
// execute(spec, ctx) -> Result<SubrequestResult, SubrequestError>.
// Implementations normalize every driver failure into a
// *gatewayerr.SubrequestError before returning.
type Client interface {
	// Execute interpolates spec's fields against gctx, dispatches the
	// call, and returns the SubrequestResult Value described in
	// spec.md §3, already tagged with client_id and type.
	Execute(ctx context.Context, spec gateway.SubrequestSpec, gctx *gateway.Context) (value.Value, error)

	// Close releases pooled resources. Called once at shutdown.
	Close() error
}

// Registry is a read-only, post-startup lookup from configured
// client_id to its live Client instance.
type Registry struct {
	clients map[string]Client
	specs   map[string]gateway.ClientSpec
}

// NewRegistry wraps a fully constructed client map. Construction
// (dialing pools, resolving DSNs) happens in the per-kind adapter
// packages and bootstrap wiring; Registry only owns lookup.
func NewRegistry(clients map[string]Client, specs map[string]gateway.ClientSpec) *Registry {
	return &Registry{clients: clients, specs: specs}
}

// Get returns the Client registered under id.
func (r *Registry) Get(id string) (Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Spec returns the ClientSpec registered under id, for type-checking a
// SubrequestSpec against its client's declared variant.
func (r *Registry) Spec(id string) (gateway.ClientSpec, bool) {
	s, ok := r.specs[id]
	return s, ok
}

// CloseAll closes every registered client, collecting the first error
// encountered while still attempting to close the rest.
func (r *Registry) CloseAll() error {
	var first error
	for _, c := range r.clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
