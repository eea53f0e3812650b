package clients

import "github.com/pkg/errors"

// ErrClientNotFound is returned by Registry.Get for unknown client IDs.
var ErrClientNotFound = errors.New("client not found")

// Registry is an immutable in-memory client lookup built once at startup.
// Reads need no locking: the snapshot never changes after construction.
type Registry struct {
	clients map[string]*Client
}

var _ Repo = (*Registry)(nil)

// NewRegistry builds a registry from the given clients.
func NewRegistry(list ...*Client) *Registry {
	m := make(map[string]*Client, len(list))
	for _, c := range list {
		m[c.ID] = c
	}
	return &Registry{clients: m}
}

func (r *Registry) Get(clientID string) (*Client, error) {
	client, ok := r.clients[clientID]
	if !ok {
		return nil, errors.Wrapf(ErrClientNotFound, "client %q", clientID)
	}
	return client, nil
}
