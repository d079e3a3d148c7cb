package domain

// IDs

type VaultID string
type GroupID string
type UserID string

// Authority records
//
// Field tags follow the JSON payloads returned by the authority CLI.

// Vault is a named container of secrets with its own access-control list.
type Vault struct {
	ID   VaultID `json:"id"`
	Name string  `json:"name"`
}

// Group is a named collection of users. When listed for a vault, Permissions
// carries the grant attached to the vault-group edge; when listed globally it
// is empty.
type Group struct {
	ID          GroupID  `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// User is a member of the account. When listed for a vault, Permissions
// carries the user's direct grant on that vault; when listed as a group
// member it is empty (the grant lives on the vault-group edge).
type User struct {
	ID          UserID   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions,omitempty"`
}

// Access resolution

// AccessPathDirect labels a grant attached to the user directly on a vault.
const AccessPathDirect = "Direct"

// AccessRecord accumulates every access path discovered for one user on one
// vault. Permissions is the union across paths; AccessVia holds one label per
// distinct path ("Direct" or "Group: <name>"). Both are sets, so observing
// the same path or permission twice is a no-op.
type AccessRecord struct {
	Name        string
	Email       string
	Permissions map[string]struct{}
	AccessVia   map[string]struct{}
}

// NewAccessRecord creates an empty accumulator for a user.
func NewAccessRecord(name, email string) *AccessRecord {
	return &AccessRecord{
		Name:        name,
		Email:       email,
		Permissions: make(map[string]struct{}),
		AccessVia:   make(map[string]struct{}),
	}
}

// AddPath unions the path's permissions into the record and adds its label.
func (r *AccessRecord) AddPath(label string, permissions []string) {
	r.AccessVia[label] = struct{}{}
	for _, p := range permissions {
		r.Permissions[p] = struct{}{}
	}
}

// ReportRow is one flattened line of the audit report: a single (user, vault)
// pair with its merged permissions and access paths, both sorted and
// comma-joined for diff-stable output.
type ReportRow struct {
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email"`
	VaultName   string `json:"vault_name"`
	Permissions string `json:"permissions"`
	AccessVia   string `json:"access_via"`
}
