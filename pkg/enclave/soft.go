package enclave

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/podattest/pod/pkg/quote"
)

// softQuoteSize matches the smallest real EPID quote we have observed, so
// the synthetic evidence exercises the same report data window.
const softQuoteSize = 512

/*
SoftEnclave is a software stand-in for the SGX pod enclave. It keeps an
ed25519 signing key sealed to a file and emits synthetic quotes carrying the
public key in the report data segment. Useful for demos and tests against a
server whose attestation authority is stubbed or permissive; it obviously
provides no hardware guarantees.
*/
type SoftEnclave struct {
	sealedKeysPath string
	privKey        ed25519.PrivateKey
}

// NewSoftEnclave loads the sealed key from sealedKeysPath, generating and
// sealing a fresh one on first use.
func NewSoftEnclave(sealedKeysPath string) (*SoftEnclave, error) {
	sealed, err := os.ReadFile(sealedKeysPath)
	switch {
	case os.IsNotExist(err):
		log.Infof("No sealed keys at %s, generating a new identity", sealedKeysPath)
		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(sealedKeysPath, privKey.Seed(), 0600); err != nil {
			return nil, fmt.Errorf("sealing keys: %w", err)
		}
		return &SoftEnclave{sealedKeysPath: sealedKeysPath, privKey: privKey}, nil
	case err != nil:
		return nil, fmt.Errorf("reading sealed keys: %w", err)
	}

	if len(sealed) != ed25519.SeedSize {
		return nil, fmt.Errorf("sealed keys at %s are corrupt", sealedKeysPath)
	}
	return &SoftEnclave{
		sealedKeysPath: sealedKeysPath,
		privKey:        ed25519.NewKeyFromSeed(sealed),
	}, nil
}

// GetQuote emits a synthetic quote with the enclave public key embedded in
// the report data segment.
func (e *SoftEnclave) GetQuote(spid string, quoteType QuoteType) (quote.Quote, error) {
	blob := make([]byte, softQuoteSize)
	blob[0] = 'P'
	blob[1] = 'O'
	blob[2] = 'D'
	blob[3] = byte(quoteType)
	copy(blob[4:quote.ReportDataBegin], spid)

	pubKey := e.privKey.Public().(ed25519.PublicKey)
	copy(blob[quote.ReportDataBegin:], pubKey)
	return quote.Quote(blob), nil
}

// Sign signs message with the enclave identity key.
func (e *SoftEnclave) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(e.privKey, message), nil
}

// Close wipes the in-memory key material. The sealed file stays for the
// next load.
func (e *SoftEnclave) Close() error {
	for i := range e.privKey {
		e.privKey[i] = 0
	}
	e.privKey = nil
	return nil
}
