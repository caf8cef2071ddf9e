package application

import (
	"fmt"
	"strings"
)

// Role names as stored on user records and carried in session tokens.
const (
	RoleNameFounder   = "founder"
	RoleNameCentral   = "central"
	RoleNameSiteAdmin = "site_admin"
	RoleNameUser      = "user"
)

// Role is the closed set of access roles. Only the scope resolver, the
// aggregation mode selection, the cache TTL policy and the cache fingerprint
// switch on it.
type Role interface {
	Name() string
	role()
}

// FounderRole sees every camp and aggregates in global mode.
type FounderRole struct{}

// CentralRole sees every camp and aggregates in global mode.
type CentralRole struct{}

// SiteAdminRole administers the camps of a single active site.
type SiteAdminRole struct {
	Site string
}

// UserRole is an ordinary account gated by per-user site permissions.
type UserRole struct {
	Site        string
	Permissions Permissions
}

// Permissions are the per-user flags that unlock shared camps for ordinary users.
type Permissions struct {
	SiteAccessApproved bool
	CanViewCamps       bool
}

func (FounderRole) Name() string   { return RoleNameFounder }
func (CentralRole) Name() string   { return RoleNameCentral }
func (SiteAdminRole) Name() string { return RoleNameSiteAdmin }
func (UserRole) Name() string      { return RoleNameUser }

func (FounderRole) role()   {}
func (CentralRole) role()   {}
func (SiteAdminRole) role() {}
func (UserRole) role()      {}

// ParseRole rebuilds a Role from its stored name and the user's site affiliation.
// Unknown names yield ErrAccessUndetermined.
func ParseRole(name, site string, permissions Permissions) (Role, error) {
	site = strings.TrimSpace(site)
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RoleNameFounder:
		return FounderRole{}, nil
	case RoleNameCentral:
		return CentralRole{}, nil
	case RoleNameSiteAdmin:
		return SiteAdminRole{Site: site}, nil
	case RoleNameUser:
		return UserRole{Site: site, Permissions: permissions}, nil
	}
	return nil, fmt.Errorf("%w: unknown role %q", ErrAccessUndetermined, name)
}

// RoleSite returns the site affiliation carried by role, if any.
func RoleSite(role Role) string {
	switch r := role.(type) {
	case SiteAdminRole:
		return r.Site
	case UserRole:
		return r.Site
	}
	return ""
}

// RolePermissions returns the ordinary-user permission flags carried by role.
func RolePermissions(role Role) Permissions {
	if r, ok := role.(UserRole); ok {
		return r.Permissions
	}
	return Permissions{}
}

// PrincipalForUser builds the principal for an authenticated account.
func PrincipalForUser(user User) (Principal, error) {
	role, err := ParseRole(user.Role, user.Site, Permissions{
		SiteAccessApproved: user.SiteAccessApproved,
		CanViewCamps:       user.CanViewCamps,
	})
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		UserID:      user.ID,
		Email:       normalizeEmail(user.Email),
		DisplayName: user.DisplayName,
		Role:        role,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
