package userdb

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const openTimeout = 5 * time.Second

var usersBucket = []byte("users")

/*
BoltDB is a UserDatabase that persists records in a single file bbolt
database, one bucket keyed by login.
*/
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (creating if necessary) the database file at path and
// ensures the users bucket exists.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening user database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing user database schema: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

func (b *BoltDB) Find(login string) (*UserRecord, error) {
	var record *UserRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(usersBucket).Get([]byte(login))
		if raw == nil {
			return nil
		}
		record = &UserRecord{}
		return json.Unmarshal(raw, record)
	})
	if err != nil {
		return nil, fmt.Errorf("loading user record: %w", err)
	}
	return record, nil
}

func (b *BoltDB) Insert(record UserRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding user record: %w", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(usersBucket)
		if bucket.Get([]byte(record.Login)) != nil {
			return ErrDuplicate
		}
		return bucket.Put([]byte(record.Login), raw)
	})
	if err == ErrDuplicate {
		return err
	}
	if err != nil {
		return fmt.Errorf("storing user record: %w", err)
	}
	return nil
}
