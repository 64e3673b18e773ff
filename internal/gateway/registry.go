package gateway

import (
	"fmt"

	"github.com/clicrdv-admin/omnipay/internal/adapter"
)

// Resolver resolves a uid to an adapter at request time. It returns false
// when the uid is not one of its own.
type Resolver func(uid string) (adapter.Adapter, bool)

// Config registers one gateway: either a static uid+adapter pair, or a
// dynamic resolver. Exactly one of the two forms must be supplied.
type Config struct {
	UID      string
	Adapter  adapter.Adapter
	Resolver Resolver
}

// Registry stores the application's configured gateways. It is populated
// at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	static    map[string]*Gateway
	resolvers []Resolver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{static: make(map[string]*Gateway)}
}

// Push registers a gateway configuration. Supplying neither a static
// uid+adapter pair nor a resolver, or both, is a configuration error
// raised here rather than at request time.
func (r *Registry) Push(cfg Config) error {
	hasStatic := cfg.UID != "" || cfg.Adapter != nil
	hasResolver := cfg.Resolver != nil

	switch {
	case hasStatic && hasResolver:
		return fmt.Errorf("gateway: a configuration takes a uid and an adapter, or a resolver, not both")
	case hasResolver:
		r.resolvers = append(r.resolvers, cfg.Resolver)
		return nil
	case hasStatic:
		g, err := New(cfg.UID, cfg.Adapter)
		if err != nil {
			return err
		}
		r.static[cfg.UID] = g
		return nil
	default:
		return fmt.Errorf("gateway: a configuration must be given a uid and an adapter, or a resolver")
	}
}

// Find returns the gateway for a uid: statically registered gateways
// first, then dynamic resolvers in registration order, each building a
// fresh Gateway on a hit. A nil return means "not a payment route", not
// an error.
func (r *Registry) Find(uid string) *Gateway {
	if g, ok := r.static[uid]; ok {
		return g
	}

	for _, resolve := range r.resolvers {
		if ad, ok := resolve(uid); ok && ad != nil {
			g, err := New(uid, ad)
			if err != nil {
				continue
			}
			return g
		}
	}

	return nil
}
