package quote

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractWindow(t *testing.T) {
	window, err := Extract(make([]byte, 438), ReportDataBegin, ReportDataEnd)
	require.NoError(t, err)
	assert.Len(t, window, 64)
}

func TestExtractTooShort(t *testing.T) {
	_, err := Extract(make([]byte, 10), ReportDataBegin, ReportDataEnd)
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = Extract(make([]byte, 431), ReportDataBegin, ReportDataEnd)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestPublicKey(t *testing.T) {
	blob := make([]byte, 500)
	for i := 0; i < PublicKeySize; i++ {
		blob[ReportDataBegin+i] = byte(i + 1)
	}
	q := Quote(blob)

	pubKey, err := q.PublicKey()
	require.NoError(t, err)
	require.Len(t, pubKey, PublicKeySize)
	assert.True(t, bytes.Equal(pubKey, blob[ReportDataBegin:ReportDataBegin+PublicKeySize]))
}

func TestQuoteJSON(t *testing.T) {
	q := Quote([]byte("some quote bytes"))
	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+base64.StdEncoding.EncodeToString(q)+`"`, string(data))

	var decoded Quote
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, q, decoded)
}

func TestNonceSizeLimit(t *testing.T) {
	oversized := base64.StdEncoding.EncodeToString(make([]byte, MaxNonceSize+1))
	var n Nonce
	err := json.Unmarshal([]byte(`"`+oversized+`"`), &n)
	assert.ErrorIs(t, err, ErrNonceTooLong)

	ok := base64.StdEncoding.EncodeToString(make([]byte, MaxNonceSize))
	require.NoError(t, json.Unmarshal([]byte(`"`+ok+`"`), &n))
	assert.Len(t, []byte(n), MaxNonceSize)
}
