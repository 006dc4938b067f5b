package enclave

import (
	"sync"

	"github.com/podattest/pod/pkg/quote"
)

// QuoteType selects the EPID signature linkability of a quote.
type QuoteType int

const (
	Unlinkable QuoteType = iota
	Linkable
)

/*
Service issues attestation quotes and signs buffers on behalf of a local
identity. Implementations are stateful and allow only one operation in
flight at a time; wrap them with Serialized before sharing across
goroutines.
*/
type Service interface {
	GetQuote(spid string, quoteType QuoteType) (quote.Quote, error)
	Sign(message []byte) ([]byte, error)
	Close() error
}

type serialized struct {
	inner Service
	lock  sync.Mutex
}

// Serialized wraps a Service so that quote, sign and close operations are
// mutually exclusive.
func Serialized(inner Service) Service {
	return &serialized{inner: inner}
}

func (s *serialized) GetQuote(spid string, quoteType QuoteType) (quote.Quote, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.inner.GetQuote(spid, quoteType)
}

func (s *serialized) Sign(message []byte) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.inner.Sign(message)
}

func (s *serialized) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.inner.Close()
}

// With opens the software enclave at sealedKeysPath, hands it to fn and
// closes it on every exit path.
func With(sealedKeysPath string, fn func(Service) error) (err error) {
	service, err := NewSoftEnclave(sealedKeysPath)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := service.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(Serialized(service))
}
