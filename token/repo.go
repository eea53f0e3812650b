package token

import "time"

// AccessTokenRecord is the server-side record of an issued access token,
// keyed by jti. The record's presence is what keeps the token alive: deleting
// it (rotation, revocation) invalidates the bearer even though the JWS itself
// still verifies.
type AccessTokenRecord struct {
	JTI       string
	ClientID  string
	Subject   string
	Scope     string
	LineageID string
	ExpiresAt time.Time
}

// AccessTokenRepo stores access token records. DeleteByLineage revokes every
// access token minted for one refresh lineage, which is how rotation
// invalidates the superseded generation's bearers.
type AccessTokenRepo interface {
	Upsert(record *AccessTokenRecord) error
	Get(jti string) (*AccessTokenRecord, error)
	Delete(jti string) error
	DeleteByLineage(lineageID string) error
}
