package job

import (
	"fmt"
	"time"
)

// tracker accumulates counters for one running job. The runner is the
// only writer, so no locking.
type tracker struct {
	total     int
	start     time.Time
	processed int
	found     int
	people    int
	errors    int
}

func newTracker(total int) *tracker {
	return &tracker{total: total, start: time.Now()}
}

// rate is the trailing companies-per-second since the job started.
func (t *tracker) rate() float64 {
	elapsed := time.Since(t.start).Seconds()
	if elapsed <= 0 || t.processed == 0 {
		return 0
	}
	return float64(t.processed) / elapsed
}

// successShortfall reports why the job misses its minimum success
// fraction, or "" when enough companies enriched without error.
func (t *tracker) successShortfall(minFraction float64) string {
	if minFraction <= 0 || t.processed == 0 {
		return ""
	}
	succeeded := t.processed - t.errors
	if float64(succeeded) >= minFraction*float64(t.processed) {
		return ""
	}
	return fmt.Sprintf("only %d of %d companies enriched successfully, below the minimum fraction %.2f",
		succeeded, t.processed, minFraction)
}

// eta estimates remaining time at the current rate, rendered as whole
// seconds under two minutes and whole minutes above.
func (t *tracker) eta() string {
	r := t.rate()
	if r <= 0 {
		return ""
	}
	remaining := t.total - t.processed
	if remaining <= 0 {
		return "0s"
	}
	secs := int(float64(remaining)/r + 0.5)
	if secs < 120 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm", (secs+30)/60)
}
