package registration

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/podattest/pod/pkg/ias"
	"github.com/podattest/pod/pkg/quote"
	"github.com/podattest/pod/pkg/userdb"
)

// DefaultRetention is how long a resolved ticket stays pollable before the
// sweep removes it.
const DefaultRetention = 5 * time.Minute

var (
	ErrEmptyLogin        = errors.New("login must not be empty")
	ErrAlreadyRegistered = errors.New("user already registered")
	ErrInProgress        = errors.New("registration already in progress for this login")
	ErrUnknown           = errors.New("no registration in progress for this login")
	ErrDuplicateOnInsert = errors.New("user registered concurrently by another request")
)

// AttestationError reports evidence the attestation authority refused.
type AttestationError struct {
	Reason string
}

func (e *AttestationError) Error() string {
	return fmt.Sprintf("attestation failed: %s", e.Reason)
}

// StoreError reports a user database failure other than a duplicate insert.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("user store unavailable: %v", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// InternalError reports a background registration unit that faulted before
// it could produce a proper outcome.
type InternalError struct {
	Cause interface{}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("registration task failed: %v", e.Cause)
}

// Status of an in-flight registration as seen by a poller.
type Status int

const (
	StatusInProgress Status = iota
	StatusDone
)

/*
ticket tracks one in-flight verification and insert for a login. The done
channel is closed exactly once by the background unit; result and finished
are only read after done is closed and only written while holding the
coordinator lock.
*/
type ticket struct {
	id       uuid.UUID
	started  time.Time
	done     chan struct{}
	result   error
	finished time.Time
}

/*
Coordinator orchestrates registrations: it rejects duplicates up front,
dispatches the blocking attestation verification and database insert to a
background goroutine, and exposes completion through polling. All ticket
state lives in one mutex guarded table scoped to the Coordinator instance.
*/
type Coordinator struct {
	db        userdb.UserDatabase
	authority ias.Client
	retention time.Duration

	lock    sync.Mutex
	tickets map[string]*ticket
}

func NewCoordinator(db userdb.UserDatabase, authority ias.Client, retention time.Duration) *Coordinator {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Coordinator{
		db:        db,
		authority: authority,
		retention: retention,
		tickets:   map[string]*ticket{},
	}
}

// Begin accepts a registration request and dispatches the slow verification
// and insert to the background. A nil return means the request was accepted,
// not that registration completed; poll for the outcome.
func (c *Coordinator) Begin(login string, q quote.Quote, nonce quote.Nonce) error {
	if login == "" {
		return ErrEmptyLogin
	}

	record, err := c.db.Find(login)
	if err != nil {
		return &StoreError{Err: err}
	}
	if record != nil {
		log.Infof("User %s already registered", login)
		return ErrAlreadyRegistered
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.sweep()
	if old, ok := c.tickets[login]; ok {
		select {
		case <-old.done:
			// a resolved ticket no longer blocks the login; the new
			// attempt supersedes it
			delete(c.tickets, login)
		default:
			// a second attempt while the first is pending is rejected
			// rather than replacing the old ticket
			return ErrInProgress
		}
	}

	t := &ticket{
		id:      uuid.New(),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	c.tickets[login] = t
	log.Infof("Accepted registration request for login %s (ticket %s)", login, t.id)

	go c.run(t, login, q, nonce)
	return nil
}

// run is the background unit: verify with the attestation authority, extract
// the public key, persist the record. It always resolves the ticket, even
// when the work panics.
func (c *Coordinator) run(t *ticket, login string, q quote.Quote, nonce quote.Nonce) {
	defer func() {
		if cause := recover(); cause != nil {
			log.Errorf("Registration task for login %s panicked: %v", login, cause)
			c.resolve(t, &InternalError{Cause: cause})
		}
	}()

	if err := c.authority.VerifyQuote(q, nonce); err != nil {
		log.Infof("Attestation for login %s rejected: %v", login, err)
		c.resolve(t, &AttestationError{Reason: err.Error()})
		return
	}

	pubKey, err := q.PublicKey()
	if err != nil {
		c.resolve(t, err)
		return
	}
	encoded := base64.StdEncoding.EncodeToString(pubKey)
	log.Debugf("Extracted public key for login %s: %s", login, encoded)

	err = c.db.Insert(userdb.UserRecord{Login: login, PubKey: encoded})
	switch {
	case errors.Is(err, userdb.ErrDuplicate):
		c.resolve(t, ErrDuplicateOnInsert)
	case err != nil:
		c.resolve(t, &StoreError{Err: err})
	default:
		log.Infof("User %s successfully registered", login)
		c.resolve(t, nil)
	}
}

func (c *Coordinator) resolve(t *ticket, result error) {
	c.lock.Lock()
	t.result = result
	t.finished = time.Now()
	c.lock.Unlock()
	close(t.done)
}

// Poll reports the state of the registration for login. A resolved ticket
// stays readable, and keeps returning the same result, until the retention
// sweep removes it.
func (c *Coordinator) Poll(login string) (Status, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sweep()

	t, ok := c.tickets[login]
	if !ok {
		return StatusDone, ErrUnknown
	}

	select {
	case <-t.done:
		return StatusDone, t.result
	default:
		return StatusInProgress, nil
	}
}

// sweep drops resolved tickets older than the retention window. Pending
// tickets are never removed; a dispatched registration is never canceled.
// Callers must hold the lock.
func (c *Coordinator) sweep() {
	now := time.Now()
	for login, t := range c.tickets {
		select {
		case <-t.done:
			if now.After(t.finished.Add(c.retention)) {
				delete(c.tickets, login)
			}
		default:
		}
	}
}
