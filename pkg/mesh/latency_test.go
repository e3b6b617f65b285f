package mesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zhtp/zhtp/pkg/crypto"
)

func TestLatencyP95(t *testing.T) {
	s := NewLatencySampler()
	peer := crypto.Hash{0x01}

	for i := 1; i <= 100; i++ {
		s.Record(peer, time.Duration(i)*time.Millisecond)
	}

	p95, ok := s.P95(peer)
	require.True(t, ok)
	require.Equal(t, 95*time.Millisecond, p95)
}

func TestLatencyRingBufferBounded(t *testing.T) {
	s := NewLatencySampler()
	peer := crypto.Hash{0x02}

	for i := 0; i < LatencySampleCap+500; i++ {
		s.Record(peer, time.Duration(i)*time.Millisecond)
	}

	require.Equal(t, LatencySampleCap, s.SampleCount(peer))
}

func TestLatencyNoSamples(t *testing.T) {
	s := NewLatencySampler()
	_, ok := s.P95(crypto.Hash{0x03})
	require.False(t, ok)
}
