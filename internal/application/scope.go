package application

import "strings"

// CampRelation describes how a camp relates to a principal.
type CampRelation string

const (
	// RelationOwned marks camps the principal owns or administers by site.
	RelationOwned CampRelation = "owned"
	// RelationShared marks camps reachable through a user or site share.
	RelationShared CampRelation = "shared"
	// RelationForeign marks every other camp.
	RelationForeign CampRelation = "foreign"
)

// ResolveVisibleCamps returns the subset of camps the principal may see,
// preserving input order. It fails closed: a malformed principal sees nothing.
func ResolveVisibleCamps(principal Principal, camps []Camp) []Camp {
	visible, _ := resolveVisibleCamps(principal, camps)
	return visible
}

func resolveVisibleCamps(principal Principal, camps []Camp) ([]Camp, error) {
	if err := validateScope(principal); err != nil {
		return []Camp{}, err
	}
	visible := make([]Camp, 0, len(camps))
	for _, camp := range camps {
		if visibleTo(principal, camp) {
			visible = append(visible, camp)
		}
	}
	return visible, nil
}

// CanView reports whether the principal may see the camp and its contents.
func CanView(principal Principal, camp Camp) bool {
	return validateScope(principal) == nil && visibleTo(principal, camp)
}

// Classify reports the principal's relation to a camp.
func Classify(principal Principal, camp Camp) CampRelation {
	if validateScope(principal) != nil {
		return RelationForeign
	}
	email := normalizeEmail(principal.Email)
	switch role := principal.Role.(type) {
	case SiteAdminRole:
		switch {
		case camp.Site == role.Site:
			return RelationOwned
		case sharedWithSite(camp, role.Site):
			return RelationShared
		}
	default:
		switch {
		case email != "" && normalizeEmail(camp.OwnerEmail) == email:
			return RelationOwned
		case shareFor(camp, email) != nil:
			return RelationShared
		}
	}
	return RelationForeign
}

// CanWrite reports whether the principal may mutate the camp, its rooms and its workers.
func CanWrite(principal Principal, camp Camp) bool {
	if validateScope(principal) != nil {
		return false
	}
	switch role := principal.Role.(type) {
	case FounderRole, CentralRole:
		return true
	case SiteAdminRole:
		return camp.Site == role.Site
	case UserRole:
		email := normalizeEmail(principal.Email)
		if normalizeEmail(camp.OwnerEmail) == email {
			return true
		}
		share := shareFor(camp, email)
		return share != nil && share.Permission == PermissionWrite && role.Permissions.approved()
	}
	return false
}

func visibleTo(principal Principal, camp Camp) bool {
	switch role := principal.Role.(type) {
	case FounderRole, CentralRole:
		return true
	case SiteAdminRole:
		return camp.Site == role.Site || sharedWithSite(camp, role.Site)
	case UserRole:
		email := normalizeEmail(principal.Email)
		if normalizeEmail(camp.OwnerEmail) == email {
			return true
		}
		return role.Permissions.approved() && shareFor(camp, email) != nil
	}
	return false
}

func validateScope(principal Principal) error {
	if principal.Role == nil {
		return &ScopeError{Reason: "missing role"}
	}
	switch role := principal.Role.(type) {
	case SiteAdminRole:
		if strings.TrimSpace(role.Site) == "" {
			return &ScopeError{Reason: "site admin without active site"}
		}
	case UserRole:
		if normalizeEmail(principal.Email) == "" {
			return &ScopeError{Reason: "user without email"}
		}
	}
	return nil
}

func (p Permissions) approved() bool {
	return p.SiteAccessApproved && p.CanViewCamps
}

// sharedWithSite reports whether a public camp grants access to site.
func sharedWithSite(camp Camp, site string) bool {
	if !camp.IsPublic || site == "" {
		return false
	}
	for _, shared := range camp.SharedWithSites {
		if shared == site {
			return true
		}
	}
	return false
}

func shareFor(camp Camp, email string) *CampShare {
	if email == "" {
		return nil
	}
	for i := range camp.SharedWith {
		if normalizeEmail(camp.SharedWith[i].Email) == email {
			return &camp.SharedWith[i]
		}
	}
	return nil
}
