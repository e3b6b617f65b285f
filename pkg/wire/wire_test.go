package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRequest() *Request {
	var id [16]byte
	copy(id[:], []byte("0123456789abcdef"))
	return &Request{
		RequestID: id,
		Timestamp: 1700000000000,
		Method:    MethodPost,
		URI:       "/contracts/abc",
		Headers: Headers{
			ContentType:      "application/cbor",
			ContentLengthSet: true,
			ContentLength:    42,
		},
		Body: []byte("payload"),
	}
}

func TestFrameRoundTrip(t *testing.T) {
	req := sampleRequest()

	var buf bytes.Buffer
	require.NoError(t, Frame(&buf, req))

	var decoded Request
	require.NoError(t, ReadFrame(&buf, &decoded))
	require.Equal(t, *req, decoded)
}

func TestCanonicalHashDeterministic(t *testing.T) {
	a := sampleRequest()
	b := sampleRequest()
	require.Equal(t, a.CanonicalHash(), b.CanonicalHash())
}

func TestCanonicalHashChangesWithBody(t *testing.T) {
	a := sampleRequest()
	b := sampleRequest()
	b.Body = []byte("different")
	require.NotEqual(t, a.CanonicalHash(), b.CanonicalHash())
}

func TestCanonicalHashChangesWithAbsentVsPresentHeader(t *testing.T) {
	a := sampleRequest()
	b := sampleRequest()
	b.Headers.ContentLengthSet = false
	require.NotEqual(t, a.CanonicalHash(), b.CanonicalHash())
}

func TestCanonicalHashChangesWithMethod(t *testing.T) {
	a := sampleRequest()
	b := sampleRequest()
	b.Method = MethodGet
	require.NotEqual(t, a.CanonicalHash(), b.CanonicalHash())
}

func TestReadFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	var decoded Request
	require.Error(t, ReadFrame(&buf, &decoded))
}
