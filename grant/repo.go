package grant

// Repo stores in-flight grant state. Consume methods are atomic
// compare-and-invalidate primitives: of any number of concurrent calls for
// the same value, exactly one succeeds and the rest observe ErrConsumed.
// Expired entries behave as absent regardless of their consumed flag.
type Repo interface {
	PutCode(code *AuthorizationCode) error
	// ConsumeCode atomically marks the code consumed and returns it. The
	// clientID must match the one the code was issued to.
	ConsumeCode(value, clientID string) (*AuthorizationCode, error)

	PutRefresh(token *RefreshToken) error
	// ConsumeRefresh atomically marks the refresh token consumed and returns
	// it, with the same semantics as ConsumeCode.
	ConsumeRefresh(value, clientID string) (*RefreshToken, error)

	PutPending(pending *PendingAuthorization) error
	// ConsumePending removes and returns the pending authorization bound to
	// the given anti-forgery token.
	ConsumePending(antiForgeryToken string) (*PendingAuthorization, error)
}
