package economic

// StorageUsageMetrics summarizes a contract's storage consumption
// over a billing period.
type StorageUsageMetrics struct {
	AvgStorageUsed  uint64
	PeakStorageUsed uint64
	StorageHours    uint64
}

// BandwidthUsageMetrics summarizes a contract's transfer volume over
// a billing period.
type BandwidthUsageMetrics struct {
	BytesUploaded   uint64
	BytesDownloaded uint64
	PeakBandwidth   uint64
}

// ApiUsageMetrics summarizes a contract's operation counts over a
// billing period.
type ApiUsageMetrics struct {
	ReadOperations   uint64
	WriteOperations  uint64
	DeleteOperations uint64
	ListOperations   uint64
}

// BillingRates is the per-unit pricing used to turn usage metrics into
// charges.
type BillingRates struct {
	StorageRatePerHour    uint64
	BandwidthRatePerGB    uint64
	ReadOperationRate     uint64
	WriteOperationRate    uint64
	DeleteOperationRate   uint64
	ListOperationRate     uint64
}

// BillingCharges is the calculated cost breakdown for one billing
// period.
type BillingCharges struct {
	StorageCharge   uint64
	BandwidthCharge uint64
	APICharge       uint64
	Bonuses         uint64
	Penalties       uint64
	TotalDue        uint64
}

// UsageBilling is the full usage-based bill for a contract over one
// billing period.
type UsageBilling struct {
	ContractID     string
	PeriodStart    int64
	PeriodEnd      int64
	StorageUsage   StorageUsageMetrics
	BandwidthUsage BandwidthUsageMetrics
	ApiUsage       ApiUsageMetrics
	Charges        BillingCharges
}

const bytesPerGiB = 1024 * 1024 * 1024

// CalculateUsageBilling computes a contract's usage-based charges:
//
//	storage_charge   = storage_hours * rate / 1000
//	bandwidth_charge = (bytes_up + bytes_down) * rate / 2^30
//	api_charge       = sum(operation_count * rate) over read/write/delete/list
//	total_due        = storage + bandwidth + api + bonuses - penalties
func CalculateUsageBilling(contractID string, periodStart, periodEnd int64, storage StorageUsageMetrics, bandwidth BandwidthUsageMetrics, api ApiUsageMetrics, rates BillingRates, bonuses, penalties uint64) UsageBilling {
	storageCharge := (storage.StorageHours * rates.StorageRatePerHour) / 1000
	bandwidthCharge := ((bandwidth.BytesUploaded + bandwidth.BytesDownloaded) * rates.BandwidthRatePerGB) / bytesPerGiB
	apiCharge := api.ReadOperations*rates.ReadOperationRate +
		api.WriteOperations*rates.WriteOperationRate +
		api.DeleteOperations*rates.DeleteOperationRate +
		api.ListOperations*rates.ListOperationRate

	total := storageCharge + bandwidthCharge + apiCharge + bonuses
	if penalties < total {
		total -= penalties
	} else {
		total = 0
	}

	return UsageBilling{
		ContractID:     contractID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		StorageUsage:   storage,
		BandwidthUsage: bandwidth,
		ApiUsage:       api,
		Charges: BillingCharges{
			StorageCharge:   storageCharge,
			BandwidthCharge: bandwidthCharge,
			APICharge:       apiCharge,
			Bonuses:         bonuses,
			Penalties:       penalties,
			TotalDue:        total,
		},
	}
}
