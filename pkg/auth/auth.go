package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/podattest/pod/pkg/userdb"
)

// ChallengeSize is the number of random bytes in an authentication challenge.
const ChallengeSize = 64

var (
	ErrNotAuthenticated     = errors.New("user not authenticated")
	ErrAlreadyAuthenticated = errors.New("user already authenticated")
	ErrNotRegistered        = errors.New("user not registered yet")
	ErrInvalidChallenge     = errors.New("invalid challenge")
	ErrInvalidEncoding      = errors.New("response is not valid base64")
	// ErrAuthenticationFailed deliberately covers every cryptographic
	// failure mode so callers cannot probe which check rejected them.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// StoreError reports a user database failure during verification.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("user store unavailable: %v", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

/*
Authenticator runs the session scoped challenge-response exchange against
the public key stored at registration. Challenges are single use: one
VerifyResponse call consumes the session's challenge whatever the outcome.
*/
type Authenticator struct {
	db userdb.UserDatabase
}

func NewAuthenticator(db userdb.UserDatabase) *Authenticator {
	return &Authenticator{db: db}
}

// IssueChallenge returns the challenge the client must sign. Re-issuing on a
// session that already holds a pending challenge returns that challenge
// unchanged rather than invalidating what the client is working against.
func (a *Authenticator) IssueChallenge(session *Session) (string, error) {
	if session.Authenticated() {
		return "", ErrAlreadyAuthenticated
	}
	if session.Challenge != "" {
		return session.Challenge, nil
	}

	blob := make([]byte, ChallengeSize)
	if _, err := rand.Read(blob); err != nil {
		return "", err
	}
	challenge := base64.StdEncoding.EncodeToString(blob)
	log.Debugf("Generated challenge: %s", challenge)

	session.Challenge = challenge
	return challenge, nil
}

// VerifyResponse checks responseB64 as an ed25519 signature over the raw
// challenge bytes. The session challenge is consumed before verification so
// it can never be replayed, and on success the session is marked
// authenticated as login.
func (a *Authenticator) VerifyResponse(session *Session, login string, responseB64 string) error {
	if session.Authenticated() {
		return ErrAlreadyAuthenticated
	}

	record, err := a.db.Find(login)
	if err != nil {
		return &StoreError{Err: err}
	}
	if record == nil {
		return ErrNotRegistered
	}

	if session.Challenge == "" {
		return ErrInvalidChallenge
	}
	challenge, err := base64.StdEncoding.DecodeString(session.Challenge)
	if err != nil {
		session.Challenge = ""
		return ErrInvalidChallenge
	}
	session.Challenge = ""

	signature, err := base64.StdEncoding.DecodeString(responseB64)
	if err != nil {
		return ErrInvalidEncoding
	}

	pubKey, err := base64.StdEncoding.DecodeString(record.PubKey)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return ErrAuthenticationFailed
	}
	if len(signature) != ed25519.SignatureSize {
		return ErrAuthenticationFailed
	}
	if !ed25519.Verify(ed25519.PublicKey(pubKey), challenge, signature) {
		return ErrAuthenticationFailed
	}

	session.UserID = login
	log.Infof("User %s successfully authenticated", login)
	return nil
}
