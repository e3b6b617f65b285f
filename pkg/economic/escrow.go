package economic

import (
	"github.com/google/uuid"
	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/errs"
)

// EscrowStatus is an escrow account's lifecycle state. The only legal
// transitions are Active -> Locked, Active -> Disputed,
// Locked -> Released, Locked -> Disputed, Disputed -> Released,
// Disputed -> Closed.
type EscrowStatus int

const (
	EscrowActive EscrowStatus = iota
	EscrowLocked
	EscrowReleased
	EscrowDisputed
	EscrowClosed
)

// EscrowCondition is a condition under which escrowed funds release.
type EscrowCondition struct {
	Kind            EscrowConditionKind
	TimeRelease     int64
	QualityThreshold float64
}

// EscrowConditionKind discriminates EscrowCondition's variants.
type EscrowConditionKind int

const (
	EscrowConditionContractCompletion EscrowConditionKind = iota
	EscrowConditionTimeRelease
	EscrowConditionQualityThreshold
	EscrowConditionManualRelease
)

// defaultSignatureThreshold is the number of co-signers original_source
// requires by default: the client and the provider.
const defaultSignatureThreshold = 2

// EscrowAccount holds funds in trust for a storage contract until its
// release conditions are met.
type EscrowAccount struct {
	AccountID          string
	ContractID         string
	ClientPubkey       crypto.PQSigPubKey
	ProviderPubkey     crypto.PQSigPubKey
	WitnessPubkeys     []crypto.PQSigPubKey
	Balance            uint64
	LockedAmount       uint64
	ReleaseConditions  []EscrowCondition
	SignatureThreshold uint8
	CreatedAt          int64
	Status             EscrowStatus
}

// NewEscrowAccount creates an active escrow account fully funded by
// initialDeposit.
func NewEscrowAccount(contractID string, clientPubkey, providerPubkey crypto.PQSigPubKey, witnesses []crypto.PQSigPubKey, initialDeposit uint64, conditions []EscrowCondition, now int64) *EscrowAccount {
	return &EscrowAccount{
		AccountID:          "escrow_" + uuid.NewString(),
		ContractID:         contractID,
		ClientPubkey:       clientPubkey,
		ProviderPubkey:     providerPubkey,
		WitnessPubkeys:     witnesses,
		Balance:            initialDeposit,
		LockedAmount:       initialDeposit,
		ReleaseConditions:  conditions,
		SignatureThreshold: defaultSignatureThreshold,
		CreatedAt:          now,
		Status:             EscrowActive,
	}
}

// Lock transitions an active escrow account into Locked, the state it
// holds while a scheduled payment is being executed against it.
func (a *EscrowAccount) Lock() error {
	if a.Status != EscrowActive {
		return errs.Statef(errs.CodeSchemaMismatch, "economic: escrow %s cannot lock from status %d", a.AccountID, a.Status)
	}
	a.Status = EscrowLocked
	return nil
}

// Dispute transitions an account into Disputed from either Active or
// Locked, the state a contested payment holds it in.
func (a *EscrowAccount) Dispute() error {
	if a.Status != EscrowActive && a.Status != EscrowLocked {
		return errs.Statef(errs.CodeSchemaMismatch, "economic: escrow %s cannot dispute from status %d", a.AccountID, a.Status)
	}
	a.Status = EscrowDisputed
	return nil
}

// Release transitions an account into Released from Locked or
// Disputed.
func (a *EscrowAccount) Release() error {
	if a.Status != EscrowLocked && a.Status != EscrowDisputed {
		return errs.Statef(errs.CodeSchemaMismatch, "economic: escrow %s cannot release from status %d", a.AccountID, a.Status)
	}
	a.Status = EscrowReleased
	return nil
}

// Close transitions a disputed account into Closed, ending it without
// a further release.
func (a *EscrowAccount) Close() error {
	if a.Status != EscrowDisputed {
		return errs.Statef(errs.CodeSchemaMismatch, "economic: escrow %s cannot close from status %d", a.AccountID, a.Status)
	}
	a.Status = EscrowClosed
	return nil
}
