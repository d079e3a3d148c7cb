package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opaudit/opaudit/pkg/domain"
)

type fakeAuthority struct {
	preflightErr error
	vaults       []domain.Vault
	vaultsErr    error
	groups       []domain.Group
	groupsErr    error
	vaultUsers   map[domain.VaultID][]domain.User
	vaultGroups  map[domain.VaultID][]domain.Group
	groupMembers map[domain.GroupID][]domain.User

	mu          sync.Mutex
	memberCalls map[domain.GroupID]int
}

func (f *fakeAuthority) Preflight(ctx context.Context) error { return f.preflightErr }

func (f *fakeAuthority) ListVaults(ctx context.Context) ([]domain.Vault, error) {
	return f.vaults, f.vaultsErr
}

func (f *fakeAuthority) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return f.groups, f.groupsErr
}

func (f *fakeAuthority) ListVaultUsers(ctx context.Context, vaultID domain.VaultID) []domain.User {
	return f.vaultUsers[vaultID]
}

func (f *fakeAuthority) ListVaultGroups(ctx context.Context, vaultID domain.VaultID) []domain.Group {
	return f.vaultGroups[vaultID]
}

func (f *fakeAuthority) ListGroupMembers(ctx context.Context, groupID domain.GroupID) []domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberCalls == nil {
		f.memberCalls = make(map[domain.GroupID]int)
	}
	f.memberCalls[groupID]++
	return f.groupMembers[groupID]
}

func engSecretsAuthority() *fakeAuthority {
	return &fakeAuthority{
		vaults: []domain.Vault{{ID: "v1", Name: "Eng-Secrets"}},
		groups: []domain.Group{{ID: "g1", Name: "Admins"}},
		vaultUsers: map[domain.VaultID][]domain.User{
			"v1": {{ID: "alice", Name: "Alice", Email: "alice@x.com", Permissions: []string{"read", "write"}}},
		},
		vaultGroups: map[domain.VaultID][]domain.Group{
			"v1": {{ID: "g1", Name: "Admins", Permissions: []string{"read", "write", "manage"}}},
		},
		groupMembers: map[domain.GroupID][]domain.User{
			"g1": {{ID: "bob", Name: "Bob", Email: "bob@x.com"}},
		},
	}
}

func TestRun(t *testing.T) {
	auditor := New(engSecretsAuthority(), nil, nil)

	rows, summary, err := auditor.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.ReportRow{
		UserName:    "Alice",
		UserEmail:   "alice@x.com",
		VaultName:   "Eng-Secrets",
		Permissions: "read, write",
		AccessVia:   "Direct",
	}, rows[0])
	assert.Equal(t, domain.ReportRow{
		UserName:    "Bob",
		UserEmail:   "bob@x.com",
		VaultName:   "Eng-Secrets",
		Permissions: "manage, read, write",
		AccessVia:   "Group: Admins",
	}, rows[1])

	assert.Equal(t, 1, summary.Vaults)
	assert.Equal(t, 1, summary.Groups)
	assert.Equal(t, 2, summary.Rows)
	assert.NotEmpty(t, summary.RunID)
}

func TestRun_PreflightFailureIsFatal(t *testing.T) {
	auth := engSecretsAuthority()
	auth.preflightErr = errors.New("not signed in")
	auditor := New(auth, nil, nil)

	_, _, err := auditor.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight failed")
}

func TestRun_VaultUniverseFailureIsFatal(t *testing.T) {
	auth := engSecretsAuthority()
	auth.vaultsErr = errors.New("cannot list vaults")
	auditor := New(auth, nil, nil)

	_, _, err := auditor.Run(context.Background())
	require.Error(t, err)
}

func TestRun_GroupUniverseFailureIsFatal(t *testing.T) {
	auth := engSecretsAuthority()
	auth.groupsErr = errors.New("cannot list groups")
	auditor := New(auth, nil, nil)

	_, _, err := auditor.Run(context.Background())
	require.Error(t, err)
}

func TestRun_DegradedGroupStillCompletes(t *testing.T) {
	// "Legacy" has no members because its fetch degraded to empty upstream.
	// The audit must complete, with Legacy contributing no access anywhere.
	auth := engSecretsAuthority()
	auth.groups = append(auth.groups, domain.Group{ID: "legacy", Name: "Legacy"})
	auth.vaultGroups["v1"] = append(auth.vaultGroups["v1"],
		domain.Group{ID: "legacy", Name: "Legacy", Permissions: []string{"read"}})

	auditor := New(auth, nil, nil)
	rows, _, err := auditor.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.NotContains(t, row.AccessVia, "Legacy")
	}
}

func TestRun_ZeroVaults(t *testing.T) {
	auth := &fakeAuthority{}
	auditor := New(auth, nil, nil)

	rows, summary, err := auditor.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, summary.Vaults)
	assert.Zero(t, summary.Rows)
}

func TestRun_MembershipFetchedOncePerGroup(t *testing.T) {
	auth := engSecretsAuthority()
	// Many vaults all granting the same group; the cache means one fetch.
	auth.vaults = []domain.Vault{
		{ID: "v1", Name: "A"}, {ID: "v2", Name: "B"}, {ID: "v3", Name: "C"},
	}
	for _, v := range auth.vaults {
		auth.vaultGroups[v.ID] = []domain.Group{{ID: "g1", Name: "Admins", Permissions: []string{"read"}}}
	}
	auditor := New(auth, nil, nil)
	auditor.Concurrency = 2

	_, _, err := auditor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, auth.memberCalls["g1"])
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	auth := engSecretsAuthority()
	auth.vaults = []domain.Vault{
		{ID: "v1", Name: "A"}, {ID: "v2", Name: "B"},
		{ID: "v3", Name: "C"}, {ID: "v4", Name: "D"},
	}

	var seen []int
	auditor := New(auth, nil, nil)
	auditor.Concurrency = 3
	auditor.Progress = func(done, total int) {
		assert.Equal(t, 4, total)
		seen = append(seen, done)
	}

	_, _, err := auditor.Run(context.Background())
	require.NoError(t, err)

	// Callbacks are serialized, so the sequence must arrive strictly
	// ascending even though resolutions complete out of order.
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	auth := engSecretsAuthority()
	auth.vaults = []domain.Vault{{ID: "v1", Name: "Eng-Secrets"}, {ID: "v2", Name: "Ops"}}
	auth.vaultUsers["v2"] = []domain.User{
		{ID: "carol", Name: "Carol", Email: "carol@x.com", Permissions: []string{"read"}},
	}

	auditor := New(auth, nil, nil)
	auditor.Concurrency = 4

	first, _, err := auditor.Run(context.Background())
	require.NoError(t, err)
	second, _, err := auditor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
