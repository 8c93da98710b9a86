// Package loadbalance provides strategies for picking a venue endpoint out
// of the redundant set a registry.Registry returns for a session.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity venues
//   - WeightedRandom:  heterogeneous venues (different capacity/priority)
//   - ConsistentHash:  sticky routing, e.g. keyed by session id
package loadbalance

import "github.com/softstream-link/soupbintcp/registry"

// Balancer is the interface for venue selection strategies.
// The client calls Pick() before dialing to choose a target venue, in the
// order transport.ConnPool.DialFirst should try them.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every connect/reconnect — must be goroutine-safe.
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
