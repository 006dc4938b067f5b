package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podattest/pod/pkg/userdb"
)

func registeredUser(t *testing.T, db *userdb.MemDB, login string) ed25519.PrivateKey {
	t.Helper()
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	require.NoError(t, db.Insert(userdb.UserRecord{
		Login:  login,
		PubKey: base64.StdEncoding.EncodeToString(pubKey),
	}))
	return privKey
}

func signChallenge(t *testing.T, privKey ed25519.PrivateKey, challengeB64 string) string {
	t.Helper()
	challenge, err := base64.StdEncoding.DecodeString(challengeB64)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(privKey, challenge))
}

func TestIssueChallengeIdempotent(t *testing.T) {
	a := NewAuthenticator(userdb.NewMemDB())
	session := &Session{}

	first, err := a.IssueChallenge(session)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := a.IssueChallenge(session)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIssueChallengeAlreadyAuthenticated(t *testing.T) {
	a := NewAuthenticator(userdb.NewMemDB())
	_, err := a.IssueChallenge(&Session{UserID: "alice"})
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)
}

func TestChallengeRoundTrip(t *testing.T) {
	db := userdb.NewMemDB()
	privKey := registeredUser(t, db, "alice")
	a := NewAuthenticator(db)
	session := &Session{}

	challenge, err := a.IssueChallenge(session)
	require.NoError(t, err)

	require.NoError(t, a.VerifyResponse(session, "alice", signChallenge(t, privKey, challenge)))
	assert.Equal(t, "alice", session.UserID)
	assert.Empty(t, session.Challenge)
}

func TestChallengeSingleUse(t *testing.T) {
	db := userdb.NewMemDB()
	privKey := registeredUser(t, db, "alice")
	a := NewAuthenticator(db)
	session := &Session{}

	challenge, err := a.IssueChallenge(session)
	require.NoError(t, err)

	// failed attempt still burns the challenge
	badSignature := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))
	assert.ErrorIs(t, a.VerifyResponse(session, "alice", badSignature), ErrAuthenticationFailed)
	assert.Empty(t, session.Challenge)

	err = a.VerifyResponse(session, "alice", signChallenge(t, privKey, challenge))
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestVerifyWithoutChallenge(t *testing.T) {
	db := userdb.NewMemDB()
	registeredUser(t, db, "alice")
	a := NewAuthenticator(db)

	err := a.VerifyResponse(&Session{}, "alice", "AAAA")
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestVerifyUnknownLogin(t *testing.T) {
	a := NewAuthenticator(userdb.NewMemDB())
	err := a.VerifyResponse(&Session{Challenge: "AAAA"}, "ghost", "AAAA")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

// brokenDB fails every lookup.
type brokenDB struct{}

func (b *brokenDB) Find(login string) (*userdb.UserRecord, error) {
	return nil, assert.AnError
}

func (b *brokenDB) Insert(record userdb.UserRecord) error {
	return assert.AnError
}

func TestVerifyStoreFailureWrapped(t *testing.T) {
	a := NewAuthenticator(&brokenDB{})

	err := a.VerifyResponse(&Session{Challenge: "AAAA"}, "alice", "AAAA")
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestVerifyMalformedResponse(t *testing.T) {
	db := userdb.NewMemDB()
	registeredUser(t, db, "alice")
	a := NewAuthenticator(db)
	session := &Session{}

	_, err := a.IssueChallenge(session)
	require.NoError(t, err)

	err = a.VerifyResponse(session, "alice", "not base64 !!!")
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestVerifyWrongKey(t *testing.T) {
	db := userdb.NewMemDB()
	registeredUser(t, db, "alice")
	_, wrongKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	a := NewAuthenticator(db)
	session := &Session{}
	challenge, err := a.IssueChallenge(session)
	require.NoError(t, err)

	err = a.VerifyResponse(session, "alice", signChallenge(t, wrongKey, challenge))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestVerifyAlreadyAuthenticated(t *testing.T) {
	a := NewAuthenticator(userdb.NewMemDB())
	err := a.VerifyResponse(&Session{UserID: "alice"}, "alice", "AAAA")
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)
}
