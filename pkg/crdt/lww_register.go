package crdt

import (
	"encoding/json"
	"fmt"
)

// LWWRegister is a Last-Write-Wins Register CRDT
type LWWRegister struct {
	NodeID    string    `json:"node_id"`
	Val       any       `json:"value"`
	Timestamp Timestamp `json:"timestamp"`
}

// NewLWWRegister creates a new LWWRegister
func NewLWWRegister(nodeID string) *LWWRegister {
	return &LWWRegister{
		NodeID:    nodeID,
		Val:       nil,
		Timestamp: NewTimestamp(),
	}
}

// Type returns the CRDT type
func (r *LWWRegister) Type() CRDTType {
	return CRDTTypeLWWRegister
}

// GetValue returns the current value
func (r *LWWRegister) GetValue() any {
	return r.Val
}

// Set updates the value with a new value and timestamp
func (r *LWWRegister) Set(value any) {
	r.Val = value
	r.Timestamp = NewTimestamp()
}

// Merge merges another LWWRegister
func (r *LWWRegister) Merge(other CRDT) error {
	otherReg, ok := other.(*LWWRegister)
	if !ok {
		return fmt.Errorf("%w: expected LWWRegister, got %T", ErrIncompatibleTypes, other)
	}

	// Keep the value with the latest timestamp; on equal timestamps the
	// register from the higher node ID wins, so replicas converge
	cmp := otherReg.Timestamp.Compare(r.Timestamp)
	if cmp > 0 || (cmp == 0 && otherReg.NodeID > r.NodeID) {
		r.Val = otherReg.Val
		r.Timestamp = otherReg.Timestamp
		r.NodeID = otherReg.NodeID
	}

	return nil
}

// Marshal serializes the LWWRegister to JSON
func (r *LWWRegister) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes the LWWRegister from JSON
func (r *LWWRegister) Unmarshal(data []byte) error {
	return json.Unmarshal(data, r)
}

// Value implements the CRDT interface
func (r *LWWRegister) Value() interface{} {
	return r.GetValue()
}
