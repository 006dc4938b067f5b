package ias

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/podattest/pod/pkg/quote"
)

// Default endpoints of the Intel Attestation Service (development tier, API v3).
const (
	DefaultVerifyURL = "https://api.trustedservices.intel.com/sgx/dev/attestation/v3/report"
	DefaultSigrlURL  = "https://api.trustedservices.intel.com/sgx/dev/attestation/v3/sigrl"

	apiKeyHeader = "Ocp-Apim-Subscription-Key"

	quoteStatusOK = "OK"
)

/*
Client verifies attestation evidence against a remote attestation authority.
Both calls are blocking and network bound; callers must keep them off the
request serving path.
*/
type Client interface {
	VerifyQuote(q quote.Quote, nonce quote.Nonce) error
	GetSigRL(groupID string) ([]byte, error)
}

// RejectError reports a quote the attestation authority examined and refused.
type RejectError struct {
	Status string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("attestation authority rejected quote with status %q", e.Status)
}

// RequestError reports that the attestation authority could not be consulted
// at all: transport failure or an unexpected HTTP status.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("attestation authority request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

type verifyRequest struct {
	IsvEnclaveQuote string `json:"isvEnclaveQuote"`
	Nonce           string `json:"nonce,omitempty"`
}

type verifyReport struct {
	IsvEnclaveQuoteStatus string `json:"isvEnclaveQuoteStatus"`
}

/*
HTTPClient talks to the IAS REST API. The API key is passed with every
request via the subscription key header.
*/
type HTTPClient struct {
	apiKey    string
	verifyURL string
	sigrlURL  string
	client    *http.Client
}

type Option func(*HTTPClient)

// WithVerifyURL overrides the report verification endpoint.
func WithVerifyURL(url string) Option {
	return func(c *HTTPClient) {
		c.verifyURL = url
	}
}

// WithSigrlURL overrides the SigRL endpoint.
func WithSigrlURL(url string) Option {
	return func(c *HTTPClient) {
		c.sigrlURL = url
	}
}

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = client
	}
}

func NewHTTPClient(apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		apiKey:    apiKey,
		verifyURL: DefaultVerifyURL,
		sigrlURL:  DefaultSigrlURL,
		client:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VerifyQuote submits the quote (and optional nonce) for verification.
// A nil return means the authority accepted the evidence.
func (c *HTTPClient) VerifyQuote(q quote.Quote, nonce quote.Nonce) error {
	payload := verifyRequest{
		IsvEnclaveQuote: base64.StdEncoding.EncodeToString(q),
	}
	if len(nonce) > 0 {
		// the nonce is an opaque byte blob; base64 keeps it intact in JSON
		payload.Nonce = base64.StdEncoding.EncodeToString(nonce)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &RequestError{Err: err}
	}

	request, err := http.NewRequest(http.MethodPost, c.verifyURL, bytes.NewReader(body))
	if err != nil {
		return &RequestError{Err: err}
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(apiKeyHeader, c.apiKey)

	response, err := c.client.Do(request)
	if err != nil {
		return &RequestError{Err: err}
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return &RequestError{Err: fmt.Errorf("verification endpoint returned %s", response.Status)}
	}

	var report verifyReport
	if err := json.NewDecoder(response.Body).Decode(&report); err != nil {
		return &RequestError{Err: fmt.Errorf("decoding verification report: %w", err)}
	}
	log.Debugf("IAS quote status: %s", report.IsvEnclaveQuoteStatus)

	if report.IsvEnclaveQuoteStatus != quoteStatusOK {
		return &RejectError{Status: report.IsvEnclaveQuoteStatus}
	}
	return nil
}

// GetSigRL fetches the signature revocation list for an EPID group. A nil
// slice with a nil error means no SigRL exists for the group.
func (c *HTTPClient) GetSigRL(groupID string) ([]byte, error) {
	request, err := http.NewRequest(http.MethodGet, c.sigrlURL+"/"+groupID, nil)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	request.Header.Set(apiKeyHeader, c.apiKey)

	response, err := c.client.Do(request)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, &RequestError{Err: fmt.Errorf("SigRL endpoint returned %s", response.Status)}
	}

	encoded, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	if len(encoded) == 0 {
		// no SigRL for this EPID group
		return nil, nil
	}
	sigrl, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("decoding SigRL: %w", err)}
	}
	return sigrl, nil
}
