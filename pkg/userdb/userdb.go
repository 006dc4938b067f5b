package userdb

import "errors"

var (
	// ErrDuplicate is returned by Insert when the login is already taken.
	ErrDuplicate = errors.New("login already registered")
)

// UserRecord maps a login to the base64 encoded ed25519 public key extracted
// from the attestation evidence at registration time. Records are created
// once and never mutated.
type UserRecord struct {
	Login  string `json:"login"`
	PubKey string `json:"pub_key"`
}

// UserDatabase is the durable store of registered identities.
type UserDatabase interface {
	// Find returns the record for login, or nil if none exists.
	Find(login string) (*UserRecord, error)
	// Insert stores a new record. ErrDuplicate if the login is taken.
	Insert(record UserRecord) error
}
