package clients

// Repo is the read-only lookup contract the core depends on. Client
// registration management lives outside this server.
type Repo interface {
	Get(clientID string) (*Client, error)
}
