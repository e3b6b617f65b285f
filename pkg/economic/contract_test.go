package economic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultStorageRequirementsMatchBaseline(t *testing.T) {
	req := DefaultStorageRequirements()
	require.Equal(t, uint32(30), req.DurationDays)
	require.Equal(t, uint8(3), req.ReplicationFactor)
	require.Equal(t, []string{"global"}, req.GeographicPreferences)
	require.InDelta(t, 0.99, req.Quality.MinUptime, 0.0001)
}

func TestDefaultQualityMetricsAreFullyHealthy(t *testing.T) {
	q := DefaultQualityMetrics()
	require.Equal(t, 1.0, q.OverallScore)
	require.Equal(t, 1.0, q.DataIntegrity)
	require.Equal(t, uint8(3), q.CurrentReplication)
}
