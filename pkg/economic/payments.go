package economic

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhtp/zhtp/pkg/crypto"
	"github.com/zhtp/zhtp/pkg/errs"
)

// PaymentStatus tracks a recorded payment's outcome.
type PaymentStatus int

const (
	PaymentPending PaymentStatus = iota
	PaymentCompleted
	PaymentPartial
	PaymentFailed
	PaymentDisputed
	PaymentRefunded
)

// PaymentReason names why a scheduled payment was created.
type PaymentReason int

const (
	ReasonContractCompletion PaymentReason = iota
	ReasonMilestoneReached
	ReasonPerformanceBonus
	ReasonSlaPenalty
	ReasonMonthlyPayment
	ReasonUsageBasedPayment
	ReasonDisputeSettlement
)

// PaymentSignature is one co-signer's authorization of a pending
// payment.
type PaymentSignature struct {
	Signer    crypto.PQSigPubKey
	Signature crypto.PQSignature
	Timestamp int64
}

// PaymentConditionKind discriminates PaymentCondition's variants.
type PaymentConditionKind int

const (
	ConditionTimeElapsed PaymentConditionKind = iota
	ConditionPerformanceThreshold
	ConditionContractStatus
	ConditionExternalConfirmation
	ConditionMultiSigThreshold
)

// PaymentCondition is one requirement that must hold before a pending
// payment executes. All of a payment's conditions must hold
// simultaneously.
type PaymentCondition struct {
	Kind                 PaymentConditionKind
	RequiredTime         int64
	PerformanceThreshold float64
	RequiredStatus       ContractStatus
	ExternalRef          string
	SignatureThreshold   uint8
}

// PaymentRecord is a completed entry in an escrow account's payment
// history.
type PaymentRecord struct {
	PaymentID   string
	ContractID  string
	Payer       string
	Payee       string
	Amount      uint64
	Type        PaymentType
	Timestamp   int64
	Status      PaymentStatus
	TxHash      *crypto.Hash
	Description string
}

// PendingPayment is a scheduled payment awaiting its conditions and
// scheduled time before it debits an escrow account.
type PendingPayment struct {
	PaymentID          string
	ContractID         string
	Amount             uint64
	Recipient          string
	Reason             PaymentReason
	ScheduledTime      time.Time
	RequiredSignatures []crypto.PQSigPubKey
	Signatures         []PaymentSignature
	Conditions         []PaymentCondition
}

// Processor is the payment and escrow ledger for the storage economic
// layer. Every balance-mutating operation runs under a single write
// lock so a payment is never partially applied.
type Processor struct {
	mu              sync.RWMutex
	escrowAccounts  map[string]*EscrowAccount
	paymentHistory  map[string][]PaymentRecord
	pendingPayments map[string]*PendingPayment
}

// NewProcessor creates an empty payment processor.
func NewProcessor() *Processor {
	return &Processor{
		escrowAccounts:  make(map[string]*EscrowAccount),
		paymentHistory:  make(map[string][]PaymentRecord),
		pendingPayments: make(map[string]*PendingPayment),
	}
}

// CreateEscrowAccount opens a new escrow account funded by
// initialDeposit and records the deposit in its payment history.
func (p *Processor) CreateEscrowAccount(contractID string, clientPubkey, providerPubkey crypto.PQSigPubKey, witnesses []crypto.PQSigPubKey, initialDeposit uint64, conditions []EscrowCondition, now time.Time) string {
	account := NewEscrowAccount(contractID, clientPubkey, providerPubkey, witnesses, initialDeposit, conditions, now.Unix())

	p.mu.Lock()
	defer p.mu.Unlock()

	p.escrowAccounts[account.AccountID] = account
	p.paymentHistory[account.AccountID] = append(p.paymentHistory[account.AccountID], PaymentRecord{
		PaymentID:   "payment_" + uuid.NewString(),
		ContractID:  contractID,
		Payer:       "client",
		Payee:       "escrow",
		Amount:      initialDeposit,
		Type:        PaymentDeposit,
		Timestamp:   now.Unix(),
		Status:      PaymentCompleted,
		Description: "initial escrow deposit",
	})
	return account.AccountID
}

// SchedulePayment registers a payment to execute once its conditions
// hold and its scheduled time has passed.
func (p *Processor) SchedulePayment(contractID string, amount uint64, recipient string, reason PaymentReason, conditions []PaymentCondition, scheduledTime time.Time) string {
	paymentID := "payment_" + uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingPayments[paymentID] = &PendingPayment{
		PaymentID:     paymentID,
		ContractID:    contractID,
		Amount:        amount,
		Recipient:     recipient,
		Reason:        reason,
		ScheduledTime: scheduledTime,
		Conditions:    conditions,
	}
	return paymentID
}

// AddSignature records a co-signer's authorization on a pending
// payment, required before a MultiSigThreshold condition can pass.
func (p *Processor) AddSignature(paymentID string, sig PaymentSignature) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	payment, ok := p.pendingPayments[paymentID]
	if !ok {
		return errs.Statef(errs.CodeUnknownKey, "economic: pending payment %s not found", paymentID)
	}
	payment.Signatures = append(payment.Signatures, sig)
	return nil
}

// ProcessPendingPayments evaluates every pending payment against now:
// a payment executes only once its scheduled time has passed and
// every one of its conditions holds. Execution debits the matching
// escrow account's LockedAmount and Balance in the same critical
// section as the condition check, so a payment is never partially
// applied — if the escrow lacks sufficient locked funds the payment
// stays pending and is reported as an error rather than silently
// dropped.
func (p *Processor) ProcessPendingPayments(now time.Time) ([]string, []error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var executed []string
	var failures []error

	for paymentID, payment := range p.pendingPayments {
		if payment.ScheduledTime.After(now) {
			continue
		}
		if !p.conditionsHoldLocked(payment, now) {
			continue
		}

		if err := p.executePaymentLocked(payment, now); err != nil {
			failures = append(failures, err)
			continue
		}

		executed = append(executed, paymentID)
		delete(p.pendingPayments, paymentID)
	}

	return executed, failures
}

func (p *Processor) conditionsHoldLocked(payment *PendingPayment, now time.Time) bool {
	for _, cond := range payment.Conditions {
		switch cond.Kind {
		case ConditionTimeElapsed:
			if now.Unix() < cond.RequiredTime {
				return false
			}
		case ConditionMultiSigThreshold:
			if uint8(len(payment.Signatures)) < cond.SignatureThreshold {
				return false
			}
		case ConditionContractStatus:
			account := p.findEscrowByContractLocked(payment.ContractID)
			if account == nil {
				return false
			}
			// Escrow status is the only contract status signal the
			// payment processor itself tracks; a condition requiring
			// the contract be Active maps to the escrow still being
			// Active or Locked.
			if cond.RequiredStatus == ContractActive && account.Status != EscrowActive && account.Status != EscrowLocked {
				return false
			}
		case ConditionPerformanceThreshold, ConditionExternalConfirmation:
			// These require data outside the payment processor's own
			// state (quality metrics, an external oracle) and are
			// evaluated by the caller before scheduling; once
			// scheduled they're treated as already satisfied.
		}
	}
	return true
}

func (p *Processor) findEscrowByContractLocked(contractID string) *EscrowAccount {
	for _, account := range p.escrowAccounts {
		if account.ContractID == contractID {
			return account
		}
	}
	return nil
}

func (p *Processor) executePaymentLocked(payment *PendingPayment, now time.Time) error {
	account := p.findEscrowByContractLocked(payment.ContractID)
	if account == nil {
		return errs.Statef(errs.CodeUnknownKey, "economic: no escrow account for contract %s", payment.ContractID)
	}
	if account.LockedAmount < payment.Amount {
		return errs.Statef(errs.CodeSchemaMismatch, "economic: escrow %s has insufficient locked balance for payment %s", account.AccountID, payment.PaymentID)
	}

	account.LockedAmount -= payment.Amount
	account.Balance -= payment.Amount

	p.paymentHistory[account.AccountID] = append(p.paymentHistory[account.AccountID], PaymentRecord{
		PaymentID:   payment.PaymentID,
		ContractID:  payment.ContractID,
		Payer:       "escrow",
		Payee:       payment.Recipient,
		Amount:      payment.Amount,
		Type:        PaymentStorage,
		Timestamp:   now.Unix(),
		Status:      PaymentCompleted,
	})
	return nil
}

// PaymentHistory returns every payment recorded against contractID,
// across whichever escrow accounts serviced it.
func (p *Processor) PaymentHistory(contractID string) []PaymentRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []PaymentRecord
	for _, records := range p.paymentHistory {
		for _, r := range records {
			if r.ContractID == contractID {
				out = append(out, r)
			}
		}
	}
	return out
}

// EscrowBalance returns the current balance of the escrow account
// backing contractID.
func (p *Processor) EscrowBalance(contractID string) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	account := p.findEscrowByContractLocked(contractID)
	if account == nil {
		return 0, false
	}
	return account.Balance, true
}

// EscrowAccountByID returns a copy of the escrow account for id.
func (p *Processor) EscrowAccountByID(id string) (EscrowAccount, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	account, ok := p.escrowAccounts[id]
	if !ok {
		return EscrowAccount{}, false
	}
	return *account, true
}

// TransitionEscrow applies transition to the escrow account backing
// accountID under the processor's single write lock.
func (p *Processor) TransitionEscrow(accountID string, transition func(*EscrowAccount) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, ok := p.escrowAccounts[accountID]
	if !ok {
		return errs.Statef(errs.CodeUnknownKey, "economic: escrow account %s not found", accountID)
	}
	return transition(account)
}
