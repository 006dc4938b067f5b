package userdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDBInsertAndFind(t *testing.T) {
	db := NewMemDB()

	missing, err := db.Find("alice")
	require.NoError(t, err)
	assert.Nil(t, missing)

	record := UserRecord{Login: "alice", PubKey: "cHVibGljIGtleQ=="}
	require.NoError(t, db.Insert(record))

	found, err := db.Find("alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, record, *found)
}

func TestMemDBDuplicate(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Insert(UserRecord{Login: "bob", PubKey: "a2V5"}))
	assert.ErrorIs(t, db.Insert(UserRecord{Login: "bob", PubKey: "b3RoZXI="}), ErrDuplicate)
}

func TestBoltDBRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")

	db, err := NewBoltDB(path)
	require.NoError(t, err)

	record := UserRecord{Login: "alice", PubKey: "cHVibGljIGtleQ=="}
	require.NoError(t, db.Insert(record))
	assert.ErrorIs(t, db.Insert(UserRecord{Login: "alice", PubKey: "b3RoZXI="}), ErrDuplicate)
	require.NoError(t, db.Close())

	// records survive reopening the file
	db, err = NewBoltDB(path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	found, err := db.Find("alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, record, *found)

	missing, err := db.Find("carol")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
