package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opaudit/opaudit/pkg/domain"
	"github.com/opaudit/opaudit/pkg/membership"
	"github.com/opaudit/opaudit/pkg/resolver"
	"github.com/opaudit/opaudit/pkg/telemetry"
)

// Authority is the full client surface the audit pipeline consumes.
type Authority interface {
	Preflight(ctx context.Context) error
	ListVaults(ctx context.Context) ([]domain.Vault, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
	ListVaultUsers(ctx context.Context, vaultID domain.VaultID) []domain.User
	ListVaultGroups(ctx context.Context, vaultID domain.VaultID) []domain.Group
	ListGroupMembers(ctx context.Context, groupID domain.GroupID) []domain.User
}

// ProgressFunc receives monotonic fan-in progress: done resolutions out of
// total vaults.
type ProgressFunc func(done, total int)

// Summary describes one completed audit run.
type Summary struct {
	RunID    string
	Vaults   int
	Groups   int
	Rows     int
	Duration time.Duration
}

// Auditor drives the pipeline stages in dependency order: preflight, vault
// universe, group universe, membership cache, then concurrent per-vault
// resolution. The cache build completes before any resolver starts, so the
// resolvers read it without locking.
type Auditor struct {
	authority Authority
	logger    telemetry.Logger
	metrics   telemetry.Metrics

	// Concurrency caps the fan-out of cache builds and vault resolutions.
	// Zero or negative means unbounded.
	Concurrency int

	// Progress, when set, is called after each vault resolution completes.
	Progress ProgressFunc
}

func New(authority Authority, logger telemetry.Logger, metrics telemetry.Metrics) *Auditor {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Auditor{authority: authority, logger: logger, metrics: metrics}
}

// Run executes the full audit and returns the flattened report rows. Rows
// are concatenated in vault order; a user legitimately appears once per vault
// they can access. Per-resource failures inside the authority degrade to
// empty results, so a successful Run can still reflect a partially readable
// account.
func (a *Auditor) Run(ctx context.Context) ([]domain.ReportRow, Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.New().String()}
	a.logger.Info(ctx, "starting audit run", map[string]any{"run_id": summary.RunID})

	if err := a.authority.Preflight(ctx); err != nil {
		return nil, summary, fmt.Errorf("preflight failed: %w", err)
	}

	vaults, err := a.authority.ListVaults(ctx)
	if err != nil {
		return nil, summary, err
	}
	summary.Vaults = len(vaults)

	groups, err := a.authority.ListGroups(ctx)
	if err != nil {
		return nil, summary, err
	}
	summary.Groups = len(groups)
	a.logger.Info(ctx, "fetched universe", map[string]any{
		"run_id": summary.RunID,
		"vaults": len(vaults),
		"groups": len(groups),
	})

	cache := membership.NewCache(a.authority, a.logger)
	if err := cache.Build(ctx, groups, a.Concurrency); err != nil {
		return nil, summary, fmt.Errorf("membership cache build aborted: %w", err)
	}

	rows, err := a.resolveAll(ctx, vaults, cache)
	if err != nil {
		return nil, summary, err
	}

	summary.Rows = len(rows)
	summary.Duration = time.Since(start)
	a.metrics.SetGauge("opaudit_report_rows", float64(summary.Rows))
	a.metrics.SetGauge("opaudit_run_duration_seconds", summary.Duration.Seconds())
	a.logger.Info(ctx, "audit run complete", map[string]any{
		"run_id":      summary.RunID,
		"rows":        summary.Rows,
		"duration_ms": summary.Duration.Milliseconds(),
	})
	return rows, summary, nil
}

// resolveAll fans out one resolution per vault and fans the row slices back
// in. Each goroutine writes only its own slot, so the final concatenation
// needs no locking and preserves vault order.
func (a *Auditor) resolveAll(ctx context.Context, vaults []domain.Vault, cache *membership.Cache) ([]domain.ReportRow, error) {
	res := resolver.New(a.authority, a.logger)
	perVault := make([][]domain.ReportRow, len(vaults))

	// The counter increment and the callback share one critical section so
	// observers always see K strictly ascending, whatever order the vault
	// resolutions finish in.
	var progressMu sync.Mutex
	done := 0
	total := len(vaults)

	g, ctx := errgroup.WithContext(ctx)
	if a.Concurrency > 0 {
		g.SetLimit(a.Concurrency)
	}
	for i, vault := range vaults {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perVault[i] = res.Resolve(ctx, vault, cache)
			a.metrics.IncCounter("opaudit_vaults_resolved_total", 1)
			progressMu.Lock()
			done++
			if a.Progress != nil {
				a.Progress(done, total)
			}
			progressMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("vault resolution aborted: %w", err)
	}

	var rows []domain.ReportRow
	for _, vaultRows := range perVault {
		rows = append(rows, vaultRows...)
	}
	return rows, nil
}
