package grant

import "errors"

var (
	// ErrNotFound covers unknown and expired entries alike: an expired grant
	// is indistinguishable from one that never existed.
	ErrNotFound = errors.New("grant not found")

	// ErrConsumed is returned when a code or refresh token is presented a
	// second time. Losers of a concurrent redemption race see this.
	ErrConsumed = errors.New("grant already consumed")

	// ErrClientMismatch is returned when a grant is redeemed by a client
	// other than the one it was issued to.
	ErrClientMismatch = errors.New("grant issued to a different client")
)
