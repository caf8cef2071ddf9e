package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/camp-occupancy/internal/persistence"
)

// CampService orchestrates validation, authorization, persistence and cache
// invalidation for camps.
type CampService struct {
	camps       CampRepository
	hooks       mutationHooks
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCampService constructs a camp service with the provided dependencies.
func NewCampService(camps CampRepository, cache CacheInvalidator, idGenerator func() string, now func() time.Time) *CampService {
	return NewCampServiceWithLogger(camps, cache, idGenerator, now, nil)
}

// NewCampServiceWithLogger constructs a camp service with a specified logger.
func NewCampServiceWithLogger(camps CampRepository, cache CacheInvalidator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CampService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CampService{
		camps:       camps,
		hooks:       mutationHooks{camps: camps, cache: cache},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *CampService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CampService", operation, attrs...)
}

// CreateCamp validates input and persists a camp owned by the principal.
func (s *CampService) CreateCamp(ctx context.Context, params CreateCampParams) (camp Camp, err error) {
	if s == nil {
		err = fmt.Errorf("CampService is nil")
		return
	}
	if s.camps == nil {
		err = fmt.Errorf("camp repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateCamp", principalAttrs(params.Principal)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create camp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("camp_id", camp.ID, "site", camp.Site).InfoContext(ctx, "camp created")
	}()

	if err = requireIdentity(params.Principal); err != nil {
		return
	}
	if normalizeEmail(params.Principal.Email) == "" {
		err = ErrAccessUndetermined
		return
	}

	input := normalizeCampInput(params.Input)
	vErr := validateCampInput(input)
	if input.Site == "" {
		vErr.add("site", "site is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if role, ok := params.Principal.Role.(SiteAdminRole); ok && role.Site != input.Site {
		err = ErrUnauthorized
		return
	}

	now := s.now()
	camp = Camp{
		ID:              s.idGenerator(),
		Name:            input.Name,
		Description:     input.Description,
		OwnerEmail:      normalizeEmail(params.Principal.Email),
		Site:            input.Site,
		IsPublic:        input.IsPublic,
		SharedWithSites: input.SharedWithSites,
		SharedWith:      input.SharedWith,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	camp, err = s.camps.CreateCamp(ctx, camp)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}

	s.hooks.afterCampChange(ctx, logger, TriggerCampCreate, camp)
	return
}

// UpdateCamp rewrites the mutable fields of a camp. The site never changes.
func (s *CampService) UpdateCamp(ctx context.Context, params UpdateCampParams) (camp Camp, err error) {
	if s == nil {
		err = fmt.Errorf("CampService is nil")
		return
	}
	if s.camps == nil {
		err = fmt.Errorf("camp repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateCamp", append(principalAttrs(params.Principal), "camp_id", params.CampID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update camp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "camp updated")
	}()

	if err = requireIdentity(params.Principal); err != nil {
		return
	}

	var existing Camp
	existing, err = loadWritableCamp(ctx, s.camps, params.Principal, params.CampID)
	if err != nil {
		return
	}

	input := normalizeCampInput(params.Input)
	vErr := validateCampInput(input)
	if input.Site != "" && input.Site != existing.Site {
		vErr.add("site", "site cannot be changed")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = input.Name
	updated.Description = input.Description
	updated.IsPublic = input.IsPublic
	updated.SharedWithSites = input.SharedWithSites
	updated.SharedWith = input.SharedWith
	updated.UpdatedAt = s.now()

	camp, err = s.camps.UpdateCamp(ctx, updated)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}

	s.hooks.afterCampChange(ctx, logger, TriggerCampUpdate, existing, camp)
	return
}

// DeleteCamp removes a camp together with its rooms and workers.
func (s *CampService) DeleteCamp(ctx context.Context, principal Principal, campID string) (err error) {
	if s == nil {
		return fmt.Errorf("CampService is nil")
	}
	if s.camps == nil {
		return fmt.Errorf("camp repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteCamp", append(principalAttrs(principal), "camp_id", campID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete camp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "camp deleted")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}

	var existing Camp
	existing, err = loadWritableCamp(ctx, s.camps, principal, campID)
	if err != nil {
		return
	}
	if err = s.camps.DeleteCamp(ctx, existing.ID); err != nil {
		err = mapRepoError(err, "", "")
		return
	}

	s.hooks.afterCampChange(ctx, logger, TriggerCampDelete, existing)
	return nil
}

// JoinCamp adds the principal to a public camp's share list with read access.
func (s *CampService) JoinCamp(ctx context.Context, principal Principal, campID string) (camp Camp, err error) {
	if s == nil {
		err = fmt.Errorf("CampService is nil")
		return
	}
	if s.camps == nil {
		err = fmt.Errorf("camp repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "JoinCamp", append(principalAttrs(principal), "camp_id", campID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to join camp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "camp joined")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}
	email := normalizeEmail(principal.Email)
	if email == "" {
		err = ErrAccessUndetermined
		return
	}

	var existing Camp
	existing, err = s.camps.GetCamp(ctx, campID)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	if !existing.IsPublic {
		err = ErrUnauthorized
		return
	}
	if normalizeEmail(existing.OwnerEmail) == email || shareFor(existing, email) != nil {
		err = ErrAlreadyExists
		return
	}

	updated := existing
	updated.SharedWith = append(append([]CampShare(nil), existing.SharedWith...), CampShare{Email: email, Permission: PermissionRead})
	updated.UpdatedAt = s.now()

	camp, err = s.camps.UpdateCamp(ctx, updated)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}

	s.hooks.afterCampChange(ctx, logger, TriggerCampJoin, existing, camp)
	return
}

// LeaveCamp removes the principal from a camp's share list.
func (s *CampService) LeaveCamp(ctx context.Context, principal Principal, campID string) (camp Camp, err error) {
	if s == nil {
		err = fmt.Errorf("CampService is nil")
		return
	}
	if s.camps == nil {
		err = fmt.Errorf("camp repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "LeaveCamp", append(principalAttrs(principal), "camp_id", campID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to leave camp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "camp left")
	}()

	if err = requireIdentity(principal); err != nil {
		return
	}
	email := normalizeEmail(principal.Email)

	var existing Camp
	existing, err = s.camps.GetCamp(ctx, campID)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}
	if email != "" && normalizeEmail(existing.OwnerEmail) == email {
		vErr := &ValidationError{}
		vErr.add("camp_id", "owner cannot leave own camp")
		err = vErr
		return
	}
	if shareFor(existing, email) == nil {
		err = ErrNotFound
		return
	}

	updated := existing
	updated.SharedWith = make([]CampShare, 0, len(existing.SharedWith))
	for _, share := range existing.SharedWith {
		if normalizeEmail(share.Email) != email {
			updated.SharedWith = append(updated.SharedWith, share)
		}
	}
	updated.UpdatedAt = s.now()

	camp, err = s.camps.UpdateCamp(ctx, updated)
	if err != nil {
		err = mapRepoError(err, "", "")
		return
	}

	s.hooks.afterCampChange(ctx, logger, TriggerCampLeave, existing, camp)
	return
}

// GetCamp returns a camp visible to the principal.
func (s *CampService) GetCamp(ctx context.Context, principal Principal, campID string) (Camp, error) {
	if s == nil {
		return Camp{}, fmt.Errorf("CampService is nil")
	}
	if err := requireIdentity(principal); err != nil {
		return Camp{}, err
	}
	return loadVisibleCamp(ctx, s.camps, principal, campID)
}

func normalizeCampInput(input CampInput) CampInput {
	out := CampInput{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Site:        strings.TrimSpace(input.Site),
		IsPublic:    input.IsPublic,
	}
	if input.IsPublic {
		for _, site := range input.SharedWithSites {
			out.SharedWithSites = appendUnique(out.SharedWithSites, strings.TrimSpace(site))
		}
	}
	seen := make(map[string]struct{}, len(input.SharedWith))
	for _, share := range input.SharedWith {
		email := normalizeEmail(share.Email)
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		permission := SharePermission(strings.ToLower(strings.TrimSpace(string(share.Permission))))
		if permission == "" {
			permission = PermissionRead
		}
		out.SharedWith = append(out.SharedWith, CampShare{Email: email, Permission: permission})
	}
	return out
}

func validateCampInput(input CampInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	for i, share := range input.SharedWith {
		field := fmt.Sprintf("shared_with[%d]", i)
		if share.Email == "" || !strings.Contains(share.Email, "@") {
			vErr.add(field+".email", "email is invalid")
		}
		if share.Permission != PermissionRead && share.Permission != PermissionWrite {
			vErr.add(field+".permission", "permission must be read or write")
		}
	}
	return vErr
}

// mapRepoError converts persistence failures to application errors. Constraint
// violations are reported against field with message.
func mapRepoError(err error, field, message string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		if field != "" {
			vErr := &ValidationError{}
			vErr.add(field, message)
			return vErr
		}
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		if field == "" {
			field, message = "record", "record violates a constraint"
		}
		vErr.add(field, message)
		return vErr
	}
	return err
}
