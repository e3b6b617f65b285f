package wire

import (
	"fmt"
	"sync"

	"github.com/zhtp/zhtp/pkg/errs"
)

// Response is the envelope returned for a Request, correlated back to
// it by RequestID so a single stream can complete requests out of
// order.
type Response struct {
	RequestID    [16]byte
	Status       uint16
	Response     any    `cbor:",omitempty"`
	ErrorCode    string `cbor:",omitempty"`
	ErrorMessage string `cbor:",omitempty"`
}

// NewErrorResponse builds a Response for err, sanitizing the message
// down to the stable Code string rather than the internal error's full
// causal chain — the wire boundary is where an *errs.Error's verbose
// debugging detail (wrapped causes, internal identifiers) must stop
// before it reaches a client.
func NewErrorResponse(requestID [16]byte, err error) Response {
	if e, ok := errs.AsError(err); ok {
		return Response{
			RequestID:    requestID,
			Status:       uint16(e.StatusCode()),
			ErrorCode:    string(e.Code),
			ErrorMessage: publicMessage(e.Code),
		}
	}
	return Response{
		RequestID:    requestID,
		Status:       500,
		ErrorCode:    string(errs.CodeInternal),
		ErrorMessage: publicMessage(errs.CodeInternal),
	}
}

// publicMessage returns a fixed, client-safe description for a code
// rather than forwarding whatever free-text Message the server-side
// *errs.Error happened to carry.
func publicMessage(code errs.Code) string {
	switch code {
	case errs.CodeSignatureInvalid:
		return "signature invalid"
	case errs.CodeMACMismatch:
		return "authentication failed"
	case errs.CodeStaleSequence:
		return "request replayed or out of order"
	case errs.CodeStaleTimestamp:
		return "request timestamp out of range"
	case errs.CodeSchemaMismatch:
		return "malformed request"
	case errs.CodeDoubleSpend:
		return "conflicting transaction"
	case errs.CodeInvalidBlock:
		return "invalid block"
	case errs.CodeDuplicateCommit:
		return "duplicate commit"
	case errs.CodeUnknownKey:
		return "not found"
	case errs.CodeAccessDenied:
		return "access denied"
	case errs.CodeOversized:
		return "request too large"
	case errs.CodeRateLimited:
		return "rate limited"
	case errs.CodeUnavailable:
		return "service unavailable"
	default:
		return "internal error"
	}
}

// NewOKResponse builds a successful Response carrying payload.
func NewOKResponse(requestID [16]byte, payload any) Response {
	return Response{RequestID: requestID, Status: 200, Response: payload}
}

// Demux dispatches Responses arriving on a single stream to the
// waiter registered for their RequestID, letting one connection serve
// many concurrently in-flight requests that may complete out of order.
type Demux struct {
	mu      sync.Mutex
	waiters map[[16]byte]chan *Response
}

// NewDemux constructs an empty Demux.
func NewDemux() *Demux {
	return &Demux{waiters: make(map[[16]byte]chan *Response)}
}

// Register creates the completion channel for requestID. The caller
// must call Deliver or Forget exactly once for that ID afterward.
func (d *Demux) Register(requestID [16]byte) (<-chan *Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.waiters[requestID]; exists {
		return nil, fmt.Errorf("wire: request id %x already registered", requestID)
	}
	ch := make(chan *Response, 1)
	d.waiters[requestID] = ch
	return ch, nil
}

// Deliver routes resp to the waiter registered for its RequestID. It
// reports whether a waiter was found; an unmatched response (waiter
// already forgotten, or none ever registered) is silently dropped by
// the caller.
func (d *Demux) Deliver(resp *Response) bool {
	d.mu.Lock()
	ch, ok := d.waiters[resp.RequestID]
	if ok {
		delete(d.waiters, resp.RequestID)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	ch <- resp
	close(ch)
	return true
}

// Forget removes a registered waiter without delivering a response,
// used when a caller gives up waiting (timeout, cancellation).
func (d *Demux) Forget(requestID [16]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.waiters, requestID)
}

// Pending reports how many requests are currently awaiting a response.
func (d *Demux) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}
