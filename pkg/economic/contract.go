// Package economic implements the storage economic layer: contracts,
// escrow accounts, scheduled payments, usage billing, and payment
// disputes.
package economic

import "github.com/zhtp/zhtp/pkg/crypto"

// ContractStatus is a storage contract's execution status.
type ContractStatus int

const (
	ContractActive ContractStatus = iota
	ContractCompleted
	ContractExpired
	ContractBreached
	ContractTerminated
	ContractPending
)

// PaymentType classifies a scheduled or recorded payment.
type PaymentType int

const (
	PaymentStorage PaymentType = iota
	PaymentBonus
	PaymentPenalty
	PaymentDeposit
	PaymentRefund
)

// PenaltyType classifies a contract penalty clause.
type PenaltyType int

const (
	PenaltyDataLoss PenaltyType = iota
	PenaltyUnavailability
	PenaltySlowResponse
	PenaltyContractBreach
	PenaltyQualityDegradation
)

// PaymentSchedule is a budget's preferred payment cadence.
type PaymentSchedule int

const (
	ScheduleUpfront PaymentSchedule = iota
	ScheduleMonthly
	ScheduleWeekly
	ScheduleDaily
	ScheduleOnCompletion
)

// PenaltyClause is one condition under which a contract incurs a
// penalty payment.
type PenaltyClause struct {
	Type             PenaltyType
	PenaltyAmount    uint64
	Conditions       string
	GracePeriod      int64
	MaxApplications  uint32
}

// QualityRequirements are the minimum service levels a storage
// contract demands of its nodes.
type QualityRequirements struct {
	MinUptime               float64
	MaxResponseTimeMillis   uint64
	MinReplication          uint8
	RequiredCertifications  []string
}

// DefaultQualityRequirements matches original_source's baseline
// contract terms.
func DefaultQualityRequirements() QualityRequirements {
	return QualityRequirements{
		MinUptime:             0.99,
		MaxResponseTimeMillis: 5000,
		MinReplication:        3,
	}
}

// BudgetConstraints bound what a client is willing to pay for storage.
type BudgetConstraints struct {
	MaxTotalCost       uint64
	MaxCostPerGBDay    uint64
	Schedule           PaymentSchedule
	MaxPriceVolatility float64
}

// DefaultBudgetConstraints matches original_source's baseline budget.
func DefaultBudgetConstraints() BudgetConstraints {
	return BudgetConstraints{
		MaxTotalCost:       10000,
		MaxCostPerGBDay:    100,
		Schedule:           ScheduleMonthly,
		MaxPriceVolatility: 0.2,
	}
}

// StorageRequirements is the full set of terms a storage contract
// negotiates.
type StorageRequirements struct {
	DurationDays           uint32
	Quality                QualityRequirements
	Budget                 BudgetConstraints
	ReplicationFactor      uint8
	GeographicPreferences  []string
}

// DefaultStorageRequirements matches original_source's baseline
// requirements (30-day, 3x replication, global).
func DefaultStorageRequirements() StorageRequirements {
	return StorageRequirements{
		DurationDays:          30,
		Quality:               DefaultQualityRequirements(),
		Budget:                DefaultBudgetConstraints(),
		ReplicationFactor:     3,
		GeographicPreferences: []string{"global"},
	}
}

// QualityMetrics tracks a contract's observed service quality over
// its lifetime.
type QualityMetrics struct {
	CurrentUptime       float64
	AvgResponseMillis   uint64
	CurrentReplication  uint8
	QualityViolations   uint32
	LastQualityCheck    int64
	QualityScore        float64
	DataIntegrity       float64
	Availability        float64
	Performance         float64
	Reliability         float64
	Security            float64
	Responsiveness      float64
	OverallScore        float64
	Confidence          float64
}

// DefaultQualityMetrics is the all-healthy baseline original_source
// starts a new contract with.
func DefaultQualityMetrics() QualityMetrics {
	return QualityMetrics{
		CurrentUptime:      1.0,
		AvgResponseMillis:  1000,
		CurrentReplication: 3,
		QualityScore:       1.0,
		DataIntegrity:      1.0,
		Availability:       1.0,
		Performance:        1.0,
		Reliability:        1.0,
		Security:           1.0,
		Responsiveness:     1.0,
		OverallScore:       1.0,
		Confidence:         1.0,
	}
}

// Payment is one scheduled installment in a contract's payment plan.
type Payment struct {
	Amount  uint64
	DueAt   int64
	Paid    bool
	TxHash  *crypto.Hash
	Type    PaymentType
}

// StorageContract binds a client, a set of storage nodes, and the
// economic terms governing their relationship.
type StorageContract struct {
	ID                  crypto.Hash
	ContentHash         crypto.Hash
	Nodes               []crypto.Hash
	DurationDays        uint32
	TotalCost           uint64
	PaymentSchedule     []Payment
	StartTime           int64
	EndTime             int64
	Penalties           []PenaltyClause
	Status              ContractStatus
	StorageRequirements StorageRequirements
	QualityMetrics      QualityMetrics
}
