package ws

// Engine bundles the room registry, permission gate, presence tracker and
// broadcast router around a single persistence gateway.
type Engine struct {
	registry *Registry
	gate     *PermissionGate
	presence *Tracker
	router   *Router
	gateway  Gateway
}

func NewEngine(gateway Gateway) *Engine {
	e := &Engine{
		registry: NewRegistry(),
		gate:     NewPermissionGate(gateway),
		presence: NewTracker(gateway),
		gateway:  gateway,
	}
	e.router = NewRouter(gateway, e.presence, e.registry)
	return e
}

// Registry exposes the room registry, mainly for introspection endpoints
// and tests.
func (e *Engine) Registry() *Registry {
	return e.registry
}
