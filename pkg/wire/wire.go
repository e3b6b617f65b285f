// Package wire implements the ZHTP request/response envelope: a
// length-framed CBOR body, a canonical request hash formalizing the
// ad-hoc field-by-field encoding the original implementation used, and
// the session-bound MAC authentication and replay protection every
// request carries.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/zhtp/zhtp/pkg/crypto"
)

// WireVersion is the protocol version every frame and canonical hash
// is computed against.
const WireVersion uint16 = 1

// MaxMessageSize bounds the size of a single framed message.
const MaxMessageSize = 16 * 1024 * 1024

// Method is the ZHTP request method, matching the original's
// discriminant byte ordering exactly.
type Method uint8

const (
	MethodGet Method = iota
	MethodPost
	MethodPut
	MethodDelete
	MethodOptions
	MethodHead
	MethodPatch
	MethodVerify
	MethodConnect
	MethodTrace
)

// Headers holds the fixed set of headers the canonical hash binds, in
// their fixed encoding order. A zero value for any field means absent;
// ContentLength is only meaningful when ContentLengthSet is true.
type Headers struct {
	ContentType      string
	ContentLengthSet bool
	ContentLength    uint64
	ContentEncoding  string
	CacheControl     string
}

// Request is one ZHTP request envelope.
type Request struct {
	RequestID [16]byte
	Timestamp int64 // milliseconds since epoch
	Method    Method
	URI       string
	Headers   Headers
	Body      []byte
}

// CanonicalHash computes the BLAKE3 digest of r's canonical byte
// encoding: wire version, request id, timestamp, method, URI, headers
// in fixed order, body — the exact layout original_source's wire codec
// used, so two semantically-equal requests always hash identically
// regardless of how their CBOR map happened to order keys on the wire.
func (r *Request) CanonicalHash() crypto.Hash {
	var buf bytes.Buffer

	writeU16LE(&buf, WireVersion)
	buf.Write(r.RequestID[:])
	writeU64LE(&buf, uint64(r.Timestamp))
	buf.WriteByte(byte(r.Method))
	writeLenPrefixed(&buf, []byte(r.URI))

	writeOptionalString(&buf, r.Headers.ContentType)
	writeOptionalContentLength(&buf, r.Headers.ContentLengthSet, r.Headers.ContentLength)
	writeOptionalString(&buf, r.Headers.ContentEncoding)
	writeOptionalString(&buf, r.Headers.CacheControl)

	writeLenPrefixed(&buf, r.Body)

	return crypto.SumHash(buf.Bytes())
}

func writeU16LE(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU64LE(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeLenPrefixed(buf *bytes.Buffer, data []byte) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(data)))
	buf.Write(tmp[:])
	buf.Write(data)
}

func writeOptionalString(buf *bytes.Buffer, s string) {
	if s == "" {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeLenPrefixed(buf, []byte(s))
}

func writeOptionalContentLength(buf *bytes.Buffer, set bool, v uint64) {
	if !set {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeU64LE(buf, v)
}

// Frame writes length-prefixed CBOR: a 4-byte big-endian length
// followed by the CBOR encoding of v. The big-endian frame prefix is
// deliberately distinct from the little-endian field widths inside
// CanonicalHash — framing is a transport concern, canonicalization is
// a hashing concern, and original_source keeps them on separate byte
// orders too.
func Frame(w io.Writer, v any) error {
	body, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal frame: %w", err)
	}
	if len(body) > MaxMessageSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds max message size %d", len(body), MaxMessageSize)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed CBOR frame from r and decodes it
// into v.
func ReadFrame(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return fmt.Errorf("wire: read length prefix: %w", err)
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxMessageSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds max message size %d", length, MaxMessageSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("wire: read frame body: %w", err)
	}
	if err := cbor.Unmarshal(body, v); err != nil {
		return fmt.Errorf("wire: unmarshal frame: %w", err)
	}
	return nil
}
