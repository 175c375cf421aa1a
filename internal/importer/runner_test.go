package importer

import (
	"testing"
	"time"
)

func TestChunkBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
	}

	for attempt := 0; attempt < 6; attempt++ {
		d := chunkBackoff(attempt, cfg)

		base := time.Duration(float64(time.Second) * float64(int(1)<<attempt))
		if base > cfg.MaxBackoff {
			base = cfg.MaxBackoff
		}
		maxWithJitter := base + base/4

		if d < base {
			t.Errorf("attempt %d: backoff %v below base %v", attempt, d, base)
		}
		if d > maxWithJitter {
			t.Errorf("attempt %d: backoff %v above base+jitter %v", attempt, d, maxWithJitter)
		}
	}
}
