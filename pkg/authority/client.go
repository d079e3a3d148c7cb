package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/opaudit/opaudit/pkg/domain"
	"github.com/opaudit/opaudit/pkg/telemetry"
)

// Client issues read-only queries against the authority CLI and parses each
// response into typed records.
//
// Failure policy follows the audit contract: the universe listings
// (ListVaults, ListGroups) return an error because the run cannot proceed
// without them; the per-resource listings (ListVaultUsers, ListVaultGroups,
// ListGroupMembers) degrade to an empty slice on any failure, transport or
// parse alike, so one restricted vault or group never blocks the rest of the
// audit.
type Client struct {
	runner  Runner
	logger  telemetry.Logger
	metrics telemetry.Metrics

	// AllVaults widens ListVaults from vaults the caller can administer to
	// every vault the caller can see.
	AllVaults bool
}

func NewClient(runner Runner, logger telemetry.Logger, metrics telemetry.Metrics) *Client {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Client{runner: runner, logger: logger, metrics: metrics}
}

const metricAuthorityCalls = "opaudit_authority_calls_total"

func (c *Client) observe(operation, outcome string) {
	c.metrics.IncCounter(metricAuthorityCalls, 1,
		telemetry.Label{Key: "operation", Value: operation},
		telemetry.Label{Key: "outcome", Value: outcome},
	)
}

// installChecker is implemented by runners that can verify the authority
// binary exists before any query is issued.
type installChecker interface {
	Installed() error
}

// Installed reports whether the binary can be resolved on PATH.
func (r *ExecRunner) Installed() error {
	if _, err := exec.LookPath(r.BinaryPath); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return nil
}

// Preflight verifies the session prerequisites: the binary is present and the
// caller holds a valid session. It must pass before any data fetch starts.
func (c *Client) Preflight(ctx context.Context) error {
	if checker, ok := c.runner.(installChecker); ok {
		if err := checker.Installed(); err != nil {
			return err
		}
	}
	if _, err := c.runner.Run(ctx, "whoami"); err != nil {
		return fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	}
	return nil
}

// ListVaults returns the vault universe. By default only vaults the caller
// can administer are returned; see AllVaults. Failure is fatal to the run.
func (c *Client) ListVaults(ctx context.Context) ([]domain.Vault, error) {
	args := []string{"vault", "list", "--format=json"}
	if !c.AllVaults {
		args = append(args, "--permission", "manage_vault")
	}
	vaults, err := fetch[domain.Vault](ctx, c, args)
	if err != nil {
		c.observe("list_vaults", "error")
		return nil, fmt.Errorf("failed to list vaults: %w", err)
	}
	c.observe("list_vaults", "ok")
	return vaults, nil
}

// ListGroups returns the group universe. Failure is fatal to the run.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	groups, err := fetch[domain.Group](ctx, c, []string{"group", "list", "--format=json"})
	if err != nil {
		c.observe("list_groups", "error")
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	c.observe("list_groups", "ok")
	return groups, nil
}

// ListVaultUsers returns the users with a direct grant on the vault.
// Degrades to empty on failure.
func (c *Client) ListVaultUsers(ctx context.Context, vaultID domain.VaultID) []domain.User {
	return degrade[domain.User](ctx, c, "list_vault_users", "vault", string(vaultID),
		[]string{"vault", "user", "list", string(vaultID), "--format=json"})
}

// ListVaultGroups returns the groups granted access to the vault, each
// carrying the permissions of its vault-group edge. Degrades to empty on
// failure.
func (c *Client) ListVaultGroups(ctx context.Context, vaultID domain.VaultID) []domain.Group {
	return degrade[domain.Group](ctx, c, "list_vault_groups", "vault", string(vaultID),
		[]string{"vault", "group", "list", string(vaultID), "--format=json"})
}

// ListGroupMembers returns the members of the group. Degrades to empty on
// failure.
func (c *Client) ListGroupMembers(ctx context.Context, groupID domain.GroupID) []domain.User {
	return degrade[domain.User](ctx, c, "list_group_members", "group", string(groupID),
		[]string{"group", "user", "list", string(groupID), "--format=json"})
}

func fetch[T any](ctx context.Context, c *Client, args []string) ([]T, error) {
	output, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var records []T
	if err := json.Unmarshal(output, &records); err != nil {
		return nil, fmt.Errorf("malformed authority response: %w", err)
	}
	return records, nil
}

func degrade[T any](ctx context.Context, c *Client, operation, idKind, id string, args []string) []T {
	records, err := fetch[T](ctx, c, args)
	if err != nil {
		c.observe(operation, "degraded")
		c.logger.Warn(ctx, "authority query degraded to empty result", map[string]any{
			"operation": operation,
			idKind:      id,
			"error":     err.Error(),
		})
		return []T{}
	}
	c.observe(operation, "ok")
	return records
}
