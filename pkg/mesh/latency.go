package mesh

import (
	"sort"
	"sync"
	"time"
)

// LatencySampleCap bounds the ring buffer of recent latency samples
// kept per peer.
const LatencySampleCap = 1000

// LatencySampler keeps a bounded ring buffer of recent round-trip
// samples per peer and computes p95 by sort-and-index — the same
// teacher-style "simple for demonstration" texture pkg/merkle uses,
// acceptable here because a 1000-sample sort runs well under the
// metrics snapshot interval.
type LatencySampler struct {
	mu      sync.Mutex
	samples map[UnifiedPeerId][]time.Duration
	next    map[UnifiedPeerId]int
}

// NewLatencySampler creates an empty sampler.
func NewLatencySampler() *LatencySampler {
	return &LatencySampler{
		samples: make(map[UnifiedPeerId][]time.Duration),
		next:    make(map[UnifiedPeerId]int),
	}
}

// Record adds a latency sample for peer, overwriting the oldest sample
// once the ring buffer reaches LatencySampleCap.
func (s *LatencySampler) Record(peer UnifiedPeerId, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.samples[peer]
	if len(buf) < LatencySampleCap {
		s.samples[peer] = append(buf, d)
		return
	}

	idx := s.next[peer] % LatencySampleCap
	buf[idx] = d
	s.next[peer] = idx + 1
}

// P95 returns the 95th-percentile latency observed for peer.
func (s *LatencySampler) P95(peer UnifiedPeerId) (time.Duration, bool) {
	s.mu.Lock()
	buf := append([]time.Duration(nil), s.samples[peer]...)
	s.mu.Unlock()

	if len(buf) == 0 {
		return 0, false
	}
	sort.Slice(buf, func(i, j int) bool { return buf[i] < buf[j] })
	idx := (len(buf)*95+99)/100 - 1 // nearest rank: ceil(0.95*n), 1-based
	if idx >= len(buf) {
		idx = len(buf) - 1
	}
	return buf[idx], true
}

// SampleCount returns the number of samples currently held for peer.
func (s *LatencySampler) SampleCount(peer UnifiedPeerId) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples[peer])
}
