package token

import "github.com/samparke/cross-chain-rebase-token/crypto"

// Role names the capabilities checked at the ledger's mutating entry points.
type Role string

const (
	// RoleMinter permits mint and burn calls. Granted to the vault and the
	// bridge at setup.
	RoleMinter Role = "minter"
	// RoleRateController permits lowering the global interest rate.
	RoleRateController Role = "rate-controller"
)

// Roles is the per-domain capability table: identity -> granted capabilities.
// Grants are issued by the domain owner during setup and are not re-derived
// at call time.
type Roles struct {
	owner  crypto.Address
	grants map[Role]map[string]struct{}
}

func NewRoles(owner crypto.Address) *Roles {
	return &Roles{
		owner:  owner,
		grants: make(map[Role]map[string]struct{}),
	}
}

// Owner returns the domain owner identity.
func (r *Roles) Owner() crypto.Address {
	return r.owner
}

// Grant assigns a capability to an address. Only the domain owner may grant.
func (r *Roles) Grant(caller crypto.Address, role Role, addr crypto.Address) error {
	if !caller.Equal(r.owner) {
		return ErrUnauthorized
	}
	set, ok := r.grants[role]
	if !ok {
		set = make(map[string]struct{})
		r.grants[role] = set
	}
	set[string(addr.Bytes())] = struct{}{}
	return nil
}

// Has reports whether the address holds the capability.
func (r *Roles) Has(role Role, addr crypto.Address) bool {
	if r == nil {
		return false
	}
	set, ok := r.grants[role]
	if !ok {
		return false
	}
	_, ok = set[string(addr.Bytes())]
	return ok
}
