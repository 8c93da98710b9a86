// Package registry defines the venue discovery interface and data types.
//
// A SoupBinTCP client does not dial a single hardcoded address: a session
// name (e.g. a market data feed or order entry session) may be served by
// several redundant venue endpoints, any one of which can accept the login.
// Servers register themselves under their session name in a central
// registry (etcd), and clients query the registry to find the currently
// live venue set before handing it to a loadbalance.Balancer.
package registry

// ServiceInstance represents a single live venue endpoint serving a
// SoupBinTCP session.
type ServiceInstance struct {
	Addr      string // Network address, e.g., "127.0.0.1:8080"
	SessionID string // SoupBinTCP session id this venue serves
	Weight    int    // Weight for load balancing (higher = more traffic)
	Version   string // Venue software version, for canary rollouts
}

// Registry is the interface for venue registration and discovery.
// Implementations include EtcdRegistry (production) and the in-memory
// mockRegistry test doubles in the client and test packages.
type Registry interface {
	// Register adds a venue instance to the registry with a TTL lease.
	// The instance will be automatically removed if KeepAlive stops (e.g., server crashes).
	Register(sessionName string, instance ServiceInstance, ttl int64) error

	// Deregister removes a venue instance from the registry.
	// Called during graceful shutdown BEFORE closing the listener.
	Deregister(sessionName string, addr string) error

	// Discover returns all currently registered venue instances for a session.
	// The client calls this to get the venue list for load balancing.
	Discover(sessionName string) ([]ServiceInstance, error)

	// Watch returns a channel that emits updated instance lists whenever
	// the session's venue set changes (new instances, removals, etc.).
	// This enables real-time discovery without polling.
	Watch(sessionName string) <-chan []ServiceInstance
}
