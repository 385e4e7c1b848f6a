package domain

// UserRole controls what an authenticated caller may do. Roles are carried in
// the access token; the engine never assigns them.
type UserRole string

const (
	RoleBidder   UserRole = "user"     // browses and bids
	RoleSeller   UserRole = "seller"   // lists auctions, cannot bid on them
	RoleAdmin    UserRole = "admin"    // full back-office access
	RoleOps      UserRole = "ops"      // operations: auction management
	RoleReadOnly UserRole = "readonly" // read-only back-office access
)

// CanAccessBackoffice returns true for back-office roles.
func (r UserRole) CanAccessBackoffice() bool {
	return r == RoleAdmin || r == RoleOps || r == RoleReadOnly
}

// CanManageAuctions returns true for roles allowed to change auction state.
func (r UserRole) CanManageAuctions() bool {
	return r == RoleAdmin || r == RoleOps
}
