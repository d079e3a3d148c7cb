package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/opaudit/opaudit/pkg/domain"
	"github.com/opaudit/opaudit/pkg/telemetry"
)

// ACLLister is the slice of the authority client the resolver needs.
type ACLLister interface {
	ListVaultUsers(ctx context.Context, vaultID domain.VaultID) []domain.User
	ListVaultGroups(ctx context.Context, vaultID domain.VaultID) []domain.Group
}

// MembershipSource is a read-only view of the group membership cache. It must
// be fully built before Resolve is called.
type MembershipSource interface {
	Members(groupID domain.GroupID) []domain.User
}

// Resolver merges every access path to one vault into a single record per
// user: a direct grant contributes the label "Direct", a grant inherited
// through a group contributes "Group: <name>", and permissions are the union
// across all paths.
type Resolver struct {
	lister ACLLister
	logger telemetry.Logger
}

func New(lister ACLLister, logger telemetry.Logger) *Resolver {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Resolver{lister: lister, logger: logger}
}

// Resolve produces the flattened report rows for one vault. A vault without a
// usable identifier yields no rows. Output is deterministic: rows are ordered
// by user ID and the joined fields are sorted, so identical input data always
// produces identical rows regardless of fetch completion order.
func (r *Resolver) Resolve(ctx context.Context, vault domain.Vault, cache MembershipSource) []domain.ReportRow {
	if vault.ID == "" {
		r.logger.Warn(ctx, "skipping vault without an identifier", map[string]any{
			"vault_name": vault.Name,
		})
		return nil
	}

	access := make(map[domain.UserID]*domain.AccessRecord)

	record := func(user domain.User) *domain.AccessRecord {
		rec, ok := access[user.ID]
		if !ok {
			rec = domain.NewAccessRecord(user.Name, user.Email)
			access[user.ID] = rec
		}
		return rec
	}

	for _, user := range r.lister.ListVaultUsers(ctx, vault.ID) {
		if user.ID == "" {
			continue
		}
		record(user).AddPath(domain.AccessPathDirect, user.Permissions)
	}

	for _, group := range r.lister.ListVaultGroups(ctx, vault.ID) {
		if group.ID == "" {
			continue
		}
		label := fmt.Sprintf("Group: %s", group.Name)
		for _, member := range cache.Members(group.ID) {
			if member.ID == "" {
				continue
			}
			record(member).AddPath(label, group.Permissions)
		}
	}

	return flatten(vault, access)
}

func flatten(vault domain.Vault, access map[domain.UserID]*domain.AccessRecord) []domain.ReportRow {
	ids := make([]string, 0, len(access))
	for id := range access {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	rows := make([]domain.ReportRow, 0, len(access))
	for _, id := range ids {
		rec := access[domain.UserID(id)]
		rows = append(rows, domain.ReportRow{
			UserName:    rec.Name,
			UserEmail:   rec.Email,
			VaultName:   vault.Name,
			Permissions: joinSorted(rec.Permissions),
			AccessVia:   joinSorted(rec.AccessVia),
		})
	}
	return rows
}

func joinSorted(set map[string]struct{}) string {
	items := make([]string, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}
