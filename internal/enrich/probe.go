package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/websearch"
)

// ProbeMode runs the once-per-job capability probe: one exploratory
// lookup through the search backend. When it fails, the job runs
// degraded: the network adapter is skipped for every company and only
// known websites are scraped. The mode never changes mid-job.
func ProbeMode(ctx context.Context, search websearch.Client) Mode {
	if err := search.Probe(ctx); err != nil {
		zap.L().Warn("enrich: capability probe failed, degrading to website-only mode",
			zap.Error(err),
		)
		return ModeDegraded
	}
	return ModeFull
}
