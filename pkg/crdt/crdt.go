package crdt

import (
	"encoding/json"
	"errors"
	"time"
)

// CRDTType represents the type of CRDT
type CRDTType string

const (
	// CRDTTypeLWWRegister is a Last-Write-Wins Register
	CRDTTypeLWWRegister CRDTType = "lww"
	// CRDTTypePNCounter is a Positive-Negative Counter
	CRDTTypePNCounter CRDTType = "pncounter"
	// CRDTTypeGCounter is a Grow-only Counter
	CRDTTypeGCounter CRDTType = "gcounter"
	// CRDTTypeIDCounter is an operation-based increment-decrement counter
	CRDTTypeIDCounter CRDTType = "idcounter"
	// CRDTTypeORSet is an Observed-Removed Set
	CRDTTypeORSet CRDTType = "orset"
	// CRDTTypeTwoPhaseSet is a state-based two-phase set
	CRDTTypeTwoPhaseSet CRDTType = "2pset"
)

// CRDT is the interface that all CRDT implementations must satisfy
type CRDT interface {
	// Type returns the type of the CRDT
	Type() CRDTType

	// Value returns the current value of the CRDT
	Value() interface{}

	// Merge merges another CRDT of the same type
	Merge(other CRDT) error

	// Marshal serializes the CRDT to bytes
	Marshal() ([]byte, error)

	// Unmarshal deserializes the CRDT from bytes
	Unmarshal(data []byte) error
}

// New creates a new CRDT instance of the specified type
func New(t CRDTType, nodeID string) (CRDT, error) {
	switch t {
	case CRDTTypeLWWRegister:
		return NewLWWRegister(nodeID), nil
	case CRDTTypePNCounter:
		return NewPNCounter(nodeID), nil
	case CRDTTypeGCounter:
		return NewGCounter(nodeID), nil
	case CRDTTypeIDCounter:
		return NewIDCounter(nodeID), nil
	case CRDTTypeORSet:
		return NewORSet(nodeID), nil
	case CRDTTypeTwoPhaseSet:
		return NewTwoPhaseSet(nodeID), nil
	default:
		return nil, ErrUnknownCRDTType
	}
}

// Timestamp is a wrapper around time.Time that implements json.Marshaler and json.Unmarshaler
type Timestamp struct {
	time.Time
}

// NewTimestamp creates a new Timestamp with the current time
func NewTimestamp() Timestamp {
	return Timestamp{Time: time.Now().UTC()}
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UnixNano())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var nano int64
	if err := json.Unmarshal(data, &nano); err != nil {
		return err
	}
	t.Time = time.Unix(0, nano).UTC()
	return nil
}

// Compare compares two timestamps
// Returns -1 if t < other, 0 if t == other, 1 if t > other
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t.Before(other.Time):
		return -1
	case t.After(other.Time):
		return 1
	default:
		return 0
	}
}

// Errors
var (
	ErrIncompatibleTypes = errors.New("incompatible CRDT types")
	ErrUnknownCRDTType   = errors.New("unknown CRDT type")
)
