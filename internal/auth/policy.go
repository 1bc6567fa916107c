package auth

import "walletd.org/internal/store"

// Principal is the validated identity a request acts as.
type Principal struct {
	UserID string
	Role   string
}

// PrincipalFromClaims converts validated token claims into a principal.
func PrincipalFromClaims(c Claims) Principal {
	return Principal{UserID: c.Subject, Role: c.Role}
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == store.RoleAdmin
}

// Authorize decides whether the principal may access a resource scoped
// to resourceOwnerID: allowed iff the principal owns the resource or is
// an admin. The decision never consults storage, so a denial cannot leak
// whether the target exists. Every resource-scoped operation must pass
// through here before doing work.
func Authorize(p Principal, resourceOwnerID string) error {
	if p.UserID == "" {
		return ErrForbidden
	}
	if p.UserID == resourceOwnerID || p.IsAdmin() {
		return nil
	}
	return ErrForbidden
}

// RequireAdmin gates admin-only operations.
func RequireAdmin(p Principal) error {
	if p.IsAdmin() {
		return nil
	}
	return ErrForbidden
}
