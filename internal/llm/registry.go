package llm

import "sync"

// Registry resolves clients by id and tracks which client a session is
// currently using. Sessions with no explicit selection fall back to the
// default client.
type Registry struct {
	mu      sync.Mutex
	clients map[string]Client
	using   map[string]string // session id -> client id
	def     string
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
		using:   make(map[string]string),
	}
}

// Register adds a client under id. The first registered client becomes
// the default.
func (r *Registry) Register(id string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = c
	if r.def == "" {
		r.def = id
	}
}

// SetDefault marks the client sessions fall back to.
func (r *Registry) SetDefault(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = id
}

// SetUsing pins a session to a specific client id.
func (r *Registry) SetUsing(umo, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.using[umo] = id
}

// ByID returns the client registered under id, or nil.
func (r *Registry) ByID(id string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[id]
}

// Using returns the client currently selected for the session, or the
// default, or nil when nothing is registered.
func (r *Registry) Using(umo string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.using[umo]; ok {
		if c, ok := r.clients[id]; ok {
			return c
		}
	}
	return r.clients[r.def]
}
