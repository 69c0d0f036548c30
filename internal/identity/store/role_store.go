package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

type RoleAccessors struct {
	Roles  RolesAccessor
	Claims RoleClaimsAccessor
}

type roleChanges struct {
	claims []entity.RoleClaim
	dirty  bool
}

// RoleStore adapts the Roles and RoleClaims tables to the role store
// contract. Claim changes are buffered until Update.
type RoleStore struct {
	a       RoleAccessors
	log     *zap.SugaredLogger
	pending map[uuid.UUID]*roleChanges
	closed  bool
}

func NewRoleStore(a RoleAccessors, log *zap.SugaredLogger) *RoleStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RoleStore{a: a, log: log, pending: map[uuid.UUID]*roleChanges{}}
}

func (s *RoleStore) check(ctx context.Context, role *entity.Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrDisposed
	}
	if role == nil {
		return invalid("role is nil")
	}
	return nil
}

func (s *RoleStore) Create(ctx context.Context, role *entity.Role) (Result, error) {
	if err := s.check(ctx, role); err != nil {
		return Result{}, err
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	if role.ConcurrencyStamp == "" {
		role.ConcurrencyStamp = utilities.NewKSUID()
	}
	if err := s.a.Roles.Create(ctx, role); err != nil {
		s.log.Warnw("create role", "role", role.Name, "err", err)
		return failure(err, fmt.Sprintf("Role '%s' could not be created.", role.Name)), nil
	}
	return Success, nil
}

func (s *RoleStore) Delete(ctx context.Context, role *entity.Role) (Result, error) {
	if err := s.check(ctx, role); err != nil {
		return Result{}, err
	}
	delete(s.pending, role.ID)
	if err := s.a.Roles.Delete(ctx, role.ID); err != nil {
		s.log.Warnw("delete role", "role", role.ID, "err", err)
		return failure(err, fmt.Sprintf("Role '%s' could not be deleted.", role.Name)), nil
	}
	return Success, nil
}

// Update writes the role with its buffered claims and regenerates the
// concurrency stamp.
func (s *RoleStore) Update(ctx context.Context, role *entity.Role) (Result, error) {
	if err := s.check(ctx, role); err != nil {
		return Result{}, err
	}
	prevStamp := role.ConcurrencyStamp
	role.ConcurrencyStamp = utilities.NewKSUID()

	var claims []entity.RoleClaim
	if ch := s.pending[role.ID]; ch != nil {
		claims = ch.claims
		if ch.dirty && len(claims) == 0 {
			s.log.Warnw("emptied collection is not written", "role", role.ID.String(), "collection", "claims")
		}
	}
	if err := s.a.Roles.Update(ctx, role, claims); err != nil {
		role.ConcurrencyStamp = prevStamp
		s.log.Warnw("update role", "role", role.ID, "err", err)
		return failure(err, fmt.Sprintf("Role '%s' could not be updated.", role.Name)), nil
	}
	delete(s.pending, role.ID)
	return Success, nil
}

func (s *RoleStore) FindByID(ctx context.Context, id string) (*entity.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, ErrDisposed
	}
	rid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.a.Roles.FindByID(ctx, rid)
}

func (s *RoleStore) FindByName(ctx context.Context, normalizedName string) (*entity.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, ErrDisposed
	}
	if normalizedName == "" {
		return nil, invalid("role name is empty")
	}
	return s.a.Roles.FindByName(ctx, normalizedName)
}

func (s *RoleStore) load(ctx context.Context, role *entity.Role) (*roleChanges, error) {
	if ch := s.pending[role.ID]; ch != nil {
		return ch, nil
	}
	claims, err := s.a.Claims.GetClaims(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	ch := &roleChanges{claims: claims}
	s.pending[role.ID] = ch
	return ch, nil
}

func (s *RoleStore) GetClaims(ctx context.Context, role *entity.Role) ([]entity.Claim, error) {
	if err := s.check(ctx, role); err != nil {
		return nil, err
	}
	claims := []entity.RoleClaim(nil)
	if ch := s.pending[role.ID]; ch != nil {
		claims = ch.claims
	} else {
		var err error
		if claims, err = s.a.Claims.GetClaims(ctx, role.ID); err != nil {
			return nil, err
		}
	}
	out := make([]entity.Claim, len(claims))
	for i, c := range claims {
		out[i] = c.Claim()
	}
	return out, nil
}

func (s *RoleStore) AddClaim(ctx context.Context, role *entity.Role, claim entity.Claim) error {
	if err := s.check(ctx, role); err != nil {
		return err
	}
	if claim.Type == "" {
		return invalid("claim type is empty")
	}
	ch, err := s.load(ctx, role)
	if err != nil {
		return err
	}
	ch.claims = append(ch.claims, entity.RoleClaim{RoleID: role.ID, ClaimType: claim.Type, ClaimValue: claim.Value})
	ch.dirty = true
	return nil
}

// RemoveClaim drops every buffered claim matching claim's type and value.
func (s *RoleStore) RemoveClaim(ctx context.Context, role *entity.Role, claim entity.Claim) error {
	if err := s.check(ctx, role); err != nil {
		return err
	}
	ch, err := s.load(ctx, role)
	if err != nil {
		return err
	}
	kept := ch.claims[:0]
	for _, c := range ch.claims {
		if c.Claim() != claim {
			kept = append(kept, c)
		}
	}
	ch.claims, ch.dirty = kept, true
	return nil
}

func (s *RoleStore) GetRoleID(ctx context.Context, role *entity.Role) (string, error) {
	if err := s.check(ctx, role); err != nil {
		return "", err
	}
	return role.ID.String(), nil
}

func (s *RoleStore) GetRoleName(ctx context.Context, role *entity.Role) (string, error) {
	if err := s.check(ctx, role); err != nil {
		return "", err
	}
	return role.Name, nil
}

func (s *RoleStore) SetRoleName(ctx context.Context, role *entity.Role, name string) error {
	if err := s.check(ctx, role); err != nil {
		return err
	}
	role.Name = name
	return nil
}

func (s *RoleStore) GetNormalizedRoleName(ctx context.Context, role *entity.Role) (string, error) {
	if err := s.check(ctx, role); err != nil {
		return "", err
	}
	return role.NormalizedName, nil
}

func (s *RoleStore) SetNormalizedRoleName(ctx context.Context, role *entity.Role, normalizedName string) error {
	if err := s.check(ctx, role); err != nil {
		return err
	}
	role.NormalizedName = normalizedName
	return nil
}

// Close releases the accessors, warning about claim changes that were
// never saved.
func (s *RoleStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.pending {
		if ch.dirty {
			s.log.Warnw("closing role store with unsaved changes", "role", id.String())
		}
	}
	s.pending = nil
	return closeAll(s.a.Roles, s.a.Claims)
}
