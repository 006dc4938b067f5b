package quote

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// ReportDataBegin and ReportDataEnd delimit the report data segment
	// within an SGX quote structure.
	ReportDataBegin = 368
	ReportDataEnd   = 432

	// PublicKeySize is the number of report data bytes interpreted as the
	// enrolled ed25519 public key.
	PublicKeySize = 32

	// MaxNonceSize is the upper bound the attestation service accepts for
	// a verification nonce.
	MaxNonceSize = 32
)

var (
	ErrTooShort     = errors.New("quote too short to contain report data")
	ErrNonceTooLong = fmt.Errorf("nonce exceeds %d bytes", MaxNonceSize)
)

/*
Quote is attestation evidence obtained from an enclave. It is opaque to this
package except for the report data segment at a fixed offset. On the wire a
quote is a base64 string.
*/
type Quote []byte

func (q Quote) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(q))
}

func (q *Quote) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	*q = blob
	return nil
}

// ReportData returns the 64 byte report data segment embedded in the quote.
// No validation of the quote itself is performed here, that is the
// attestation authority's job.
func (q Quote) ReportData() ([]byte, error) {
	return Extract(q, ReportDataBegin, ReportDataEnd)
}

// PublicKey returns the first 32 bytes of the report data segment, the
// application public key smuggled inside the quote.
func (q Quote) PublicKey() ([]byte, error) {
	reportData, err := q.ReportData()
	if err != nil {
		return nil, err
	}
	return reportData[:PublicKeySize], nil
}

// Extract carves the byte window [begin, end) out of blob. It fails with
// ErrTooShort if blob does not reach end.
func Extract(blob []byte, begin int, end int) ([]byte, error) {
	if begin < 0 || end < begin || len(blob) < end {
		return nil, ErrTooShort
	}
	return blob[begin:end], nil
}

/*
Nonce is an optional client supplied blob bound into quote verification for
freshness. On the wire a nonce is a base64 string.
*/
type Nonce []byte

func (n Nonce) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(n))
}

func (n *Nonce) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	if len(blob) > MaxNonceSize {
		return ErrNonceTooLong
	}
	*n = blob
	return nil
}
