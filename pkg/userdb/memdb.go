package userdb

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

/*
MemDB is a minimal in-memory implementation of the UserDatabase, useful for
tests and demos. Not intended for production use.
*/
type MemDB struct {
	db   map[string]UserRecord
	lock sync.RWMutex
}

func NewMemDB() *MemDB {
	return &MemDB{
		db:   map[string]UserRecord{},
		lock: sync.RWMutex{},
	}
}

func (m *MemDB) Find(login string) (*UserRecord, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if record, ok := m.db[login]; ok {
		return &record, nil
	}
	return nil, nil
}

func (m *MemDB) Insert(record UserRecord) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.db[record.Login]; ok {
		return ErrDuplicate
	}
	m.db[record.Login] = record
	log.Infof("Registered new user record for login %s", record.Login)
	return nil
}
