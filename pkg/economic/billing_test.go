package economic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateUsageBillingArithmetic(t *testing.T) {
	rates := BillingRates{
		StorageRatePerHour: 1000,
		BandwidthRatePerGB: 10,
		ReadOperationRate:  1,
		WriteOperationRate: 2,
		DeleteOperationRate: 3,
		ListOperationRate:  4,
	}

	storage := StorageUsageMetrics{StorageHours: 500}
	bandwidth := BandwidthUsageMetrics{BytesUploaded: bytesPerGiB, BytesDownloaded: bytesPerGiB}
	api := ApiUsageMetrics{ReadOperations: 10, WriteOperations: 5, DeleteOperations: 2, ListOperations: 1}

	bill := CalculateUsageBilling("contract-1", 0, 3600, storage, bandwidth, api, rates, 50, 10)

	require.Equal(t, uint64(500), bill.Charges.StorageCharge) // 500*1000/1000
	require.Equal(t, uint64(20), bill.Charges.BandwidthCharge) // 2 GiB * 10
	require.Equal(t, uint64(10+10+6+4), bill.Charges.APICharge)
	require.Equal(t, bill.Charges.StorageCharge+bill.Charges.BandwidthCharge+bill.Charges.APICharge+50-10, bill.Charges.TotalDue)
}

func TestCalculateUsageBillingPenaltiesNeverUnderflow(t *testing.T) {
	bill := CalculateUsageBilling("contract-1", 0, 0, StorageUsageMetrics{}, BandwidthUsageMetrics{}, ApiUsageMetrics{}, BillingRates{}, 0, 1000)
	require.Equal(t, uint64(0), bill.Charges.TotalDue)
}
