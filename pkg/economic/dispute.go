package economic

import (
	"sync"

	"github.com/google/uuid"
	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/errs"
)

// DisputeReason names why a party opened a dispute.
type DisputeReason int

const (
	DisputeServiceNotProvided DisputeReason = iota
	DisputeSlaViolation
	DisputeDataLoss
	DisputeOverCharging
	DisputeUnauthorizedCharges
	DisputeTechnicalIssues
	DisputeContractBreach
)

// DisputeEvidence is one piece of evidence submitted in support of a
// dispute.
type DisputeEvidence struct {
	EvidenceType string
	Data         []byte
	Hash         crypto.Hash
	Submitter    string
	Timestamp    int64
}

// DisputeStatus tracks a dispute through arbitration.
type DisputeStatus int

const (
	DisputeOpen DisputeStatus = iota
	DisputeUnderReview
	DisputeResolved
	DisputeEscalated
	DisputeClosed
)

// DisputeResolutionMethod is how a dispute was, or will be, resolved.
type DisputeResolutionMethod int

const (
	ResolutionArbitration DisputeResolutionMethod = iota
	ResolutionCommunityVoting
	ResolutionExpertPanel
	ResolutionMediation
)

// DisputeAccount is a contested payment under arbitration.
type DisputeAccount struct {
	DisputeID       string
	ContractID      string
	DisputedAmount  uint64
	Reason          DisputeReason
	DisputingParty  string
	Evidence        []DisputeEvidence
	Arbitrators     []string
	Status          DisputeStatus
	Resolution      *DisputeResolutionMethod
	CreatedAt       int64
}

// Disputes tracks the dispute accounts associated with a Processor's
// escrow accounts, assigning arbitrators from a configured pool and
// locking the related escrow for the dispute's duration.
type Disputes struct {
	mu         sync.RWMutex
	processor  *Processor
	disputes   map[string]*DisputeAccount
	arbitrators []string
}

// NewDisputes creates a dispute tracker over processor's escrow
// accounts, drawing arbitrators from pool.
func NewDisputes(processor *Processor, pool []string) *Disputes {
	return &Disputes{
		processor:   processor,
		disputes:    make(map[string]*DisputeAccount),
		arbitrators: pool,
	}
}

// arbitratorPanelSize is how many arbitrators original_source assigns
// per dispute by default.
const arbitratorPanelSize = 3

// CreateDispute opens a dispute against contractID, locking its escrow
// account and assigning an arbitrator panel from the configured pool.
func (d *Disputes) CreateDispute(contractID string, disputedAmount uint64, reason DisputeReason, disputingParty string, evidence []DisputeEvidence, now int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dispute := &DisputeAccount{
		DisputeID:      "dispute_" + uuid.NewString(),
		ContractID:     contractID,
		DisputedAmount: disputedAmount,
		Reason:         reason,
		DisputingParty: disputingParty,
		Evidence:       evidence,
		Arbitrators:    d.assignArbitrators(),
		Status:         DisputeOpen,
		CreatedAt:      now,
	}

	err := d.processor.TransitionEscrow(d.escrowIDForContract(contractID), func(a *EscrowAccount) error {
		return a.Dispute()
	})
	if err != nil {
		return "", err
	}

	d.disputes[dispute.DisputeID] = dispute
	return dispute.DisputeID, nil
}

func (d *Disputes) assignArbitrators() []string {
	if len(d.arbitrators) <= arbitratorPanelSize {
		out := make([]string, len(d.arbitrators))
		copy(out, d.arbitrators)
		return out
	}
	out := make([]string, arbitratorPanelSize)
	copy(out, d.arbitrators[:arbitratorPanelSize])
	return out
}

func (d *Disputes) escrowIDForContract(contractID string) string {
	d.processor.mu.RLock()
	defer d.processor.mu.RUnlock()
	for id, account := range d.processor.escrowAccounts {
		if account.ContractID == contractID {
			return id
		}
	}
	return ""
}

// Resolve records a dispute's resolution and moves its escrow account
// on to Released or Closed depending on how the dispute resolved.
func (d *Disputes) Resolve(disputeID string, method DisputeResolutionMethod, release bool) error {
	d.mu.Lock()
	dispute, ok := d.disputes[disputeID]
	if !ok {
		d.mu.Unlock()
		return errs.Statef(errs.CodeUnknownKey, "economic: dispute %s not found", disputeID)
	}
	dispute.Resolution = &method
	dispute.Status = DisputeResolved
	contractID := dispute.ContractID
	d.mu.Unlock()

	return d.processor.TransitionEscrow(d.escrowIDForContract(contractID), func(a *EscrowAccount) error {
		if release {
			return a.Release()
		}
		return a.Close()
	})
}

// Get returns a copy of a dispute account.
func (d *Disputes) Get(disputeID string) (DisputeAccount, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dispute, ok := d.disputes[disputeID]
	if !ok {
		return DisputeAccount{}, false
	}
	return *dispute, true
}
