package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *SessionStore {
	var hashKey, blockKey [32]byte
	copy(hashKey[:], "0123456789abcdef0123456789abcdef")
	copy(blockKey[:], "fedcba9876543210fedcba9876543210")
	return NewSessionStore("session", hashKey, blockKey, false)
}

func requestWithCookie(recorder *httptest.ResponseRecorder) *http.Request {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range recorder.Result().Cookies() {
		request.AddCookie(cookie)
	}
	return request
}

func TestSessionRoundTrip(t *testing.T) {
	store := testStore()
	recorder := httptest.NewRecorder()

	require.NoError(t, store.Save(recorder, &Session{Challenge: "Y2hhbGxlbmdl", UserID: "alice"}))

	loaded, err := store.Load(requestWithCookie(recorder))
	require.NoError(t, err)
	assert.Equal(t, "Y2hhbGxlbmdl", loaded.Challenge)
	assert.Equal(t, "alice", loaded.UserID)
	assert.True(t, loaded.Authenticated())
}

func TestSessionMissingCookie(t *testing.T) {
	store := testStore()
	session, err := store.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Empty(t, session.Challenge)
	assert.False(t, session.Authenticated())
}

func TestSessionTamperDetected(t *testing.T) {
	store := testStore()
	recorder := httptest.NewRecorder()
	require.NoError(t, store.Save(recorder, &Session{UserID: "alice"}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	cookie := recorder.Result().Cookies()[0]
	cookie.Value = cookie.Value[:len(cookie.Value)-2] + "xx"
	request.AddCookie(cookie)

	_, err := store.Load(request)
	assert.ErrorIs(t, err, ErrInvalidCookie)
}
