package store_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/identitytest"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/store"
)

func newRoleStore(c *qt.C, f repo.ConnectionFactory) *store.RoleStore {
	ctx := context.Background()
	roles, err := repo.NewRolesRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	claims, err := repo.NewRoleClaimsRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)

	s := store.NewRoleStore(store.RoleAccessors{Roles: roles, Claims: claims}, nil)
	c.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoleStoreValidatesBeforeIO(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := store.NewRoleStore(store.RoleAccessors{}, nil)

	_, err := s.Create(ctx, nil)
	c.Assert(err, qt.ErrorIs, store.ErrInvalidArgument)
	_, err = s.Update(ctx, nil)
	c.Assert(err, qt.ErrorIs, store.ErrInvalidArgument)
	_, err = s.Delete(ctx, nil)
	c.Assert(err, qt.ErrorIs, store.ErrInvalidArgument)
	_, err = s.FindByID(ctx, "nope")
	c.Assert(err, qt.ErrorIs, store.ErrInvalidArgument)
	_, err = s.FindByName(ctx, "")
	c.Assert(err, qt.ErrorIs, store.ErrInvalidArgument)
	c.Assert(s.AddClaim(ctx, entity.NewRole("Admin"), entity.Claim{}), qt.ErrorIs, store.ErrInvalidArgument)
	_, err = s.GetRoleName(ctx, nil)
	c.Assert(err, qt.ErrorIs, store.ErrInvalidArgument)

	c.Assert(s.Close(), qt.IsNil)
	_, err = s.FindByName(ctx, "ADMIN")
	c.Assert(err, qt.ErrorIs, store.ErrDisposed)
}

func TestRoleStoreCreateAndFind(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := newRoleStore(c, identitytest.NewFactory(t))

	admin := entity.NewRole("Admin")
	res, err := s.Create(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Succeeded, qt.IsTrue)

	got, err := s.FindByName(ctx, "ADMIN")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, admin)

	got, err = s.FindByID(ctx, admin.ID.String())
	c.Assert(err, qt.IsNil)
	c.Assert(got.Name, qt.Equals, "Admin")

	got, err = s.FindByID(ctx, uuid.NewString())
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)

	res, err = s.Create(ctx, entity.NewRole("admin"))
	c.Assert(err, qt.IsNil)
	c.Assert(res.Succeeded, qt.IsFalse)
	c.Assert(res.Errors, qt.DeepEquals, []store.Error{{Code: "Duplicate", Description: "Role 'admin' could not be created."}})
}

func TestRoleStoreDelete(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := newRoleStore(c, identitytest.NewFactory(t))
	admin := entity.NewRole("Admin")
	_, err := s.Create(ctx, admin)
	c.Assert(err, qt.IsNil)

	res, err := s.Delete(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Succeeded, qt.IsTrue)

	res, err = s.Delete(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Succeeded, qt.IsFalse)
	c.Assert(res.Errors[0].Code, qt.Equals, "NotFound")
}

func TestRoleStoreClaims(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := identitytest.NewFactory(t)
	s := newRoleStore(c, f)
	admin := entity.NewRole("Admin")
	_, err := s.Create(ctx, admin)
	c.Assert(err, qt.IsNil)

	c.Assert(s.AddClaim(ctx, admin, entity.Claim{Type: "perm", Value: "read"}), qt.IsNil)
	c.Assert(s.AddClaim(ctx, admin, entity.Claim{Type: "perm", Value: "write"}), qt.IsNil)
	c.Assert(s.AddClaim(ctx, admin, entity.Claim{Type: "perm", Value: "drop"}), qt.IsNil)
	c.Assert(s.RemoveClaim(ctx, admin, entity.Claim{Type: "perm", Value: "drop"}), qt.IsNil)

	other := newRoleStore(c, f)
	claims, err := other.GetClaims(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(claims, qt.HasLen, 0)

	stamp := admin.ConcurrencyStamp
	res, err := s.Update(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Succeeded, qt.IsTrue)
	c.Assert(admin.ConcurrencyStamp, qt.Not(qt.Equals), stamp)

	claims, err = other.GetClaims(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(claims, qt.DeepEquals, []entity.Claim{{Type: "perm", Value: "read"}, {Type: "perm", Value: "write"}})
}

func TestRoleStoreRemovingEveryClaimLeavesStoredClaims(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := identitytest.NewFactory(t)
	core, logs := observer.New(zapcore.WarnLevel)
	roles, err := repo.NewRolesRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	roleClaims, err := repo.NewRoleClaimsRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	s := store.NewRoleStore(store.RoleAccessors{Roles: roles, Claims: roleClaims}, zap.New(core).Sugar())
	defer s.Close()

	admin := entity.NewRole("Admin")
	_, err = s.Create(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(s.AddClaim(ctx, admin, entity.Claim{Type: "perm", Value: "read"}), qt.IsNil)
	_, err = s.Update(ctx, admin)
	c.Assert(err, qt.IsNil)

	// an empty collection is not flushed
	c.Assert(s.RemoveClaim(ctx, admin, entity.Claim{Type: "perm", Value: "read"}), qt.IsNil)
	res, err := s.Update(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Succeeded, qt.IsTrue)

	claims, err := newRoleStore(c, f).GetClaims(ctx, admin)
	c.Assert(err, qt.IsNil)
	c.Assert(claims, qt.DeepEquals, []entity.Claim{{Type: "perm", Value: "read"}})

	entries := logs.FilterMessage("emptied collection is not written").All()
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].ContextMap()["role"], qt.Equals, admin.ID.String())
	c.Assert(entries[0].ContextMap()["collection"], qt.Equals, "claims")
}

func TestRoleStoreNameAccessors(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := identitytest.NewFactory(t)
	s := newRoleStore(c, f)
	role := entity.NewRole("Admin")
	_, err := s.Create(ctx, role)
	c.Assert(err, qt.IsNil)

	id, err := s.GetRoleID(ctx, role)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, role.ID.String())

	c.Assert(s.SetRoleName(ctx, role, "Operator"), qt.IsNil)
	c.Assert(s.SetNormalizedRoleName(ctx, role, "OPERATOR"), qt.IsNil)
	name, err := s.GetRoleName(ctx, role)
	c.Assert(err, qt.IsNil)
	c.Assert(name, qt.Equals, "Operator")
	norm, err := s.GetNormalizedRoleName(ctx, role)
	c.Assert(err, qt.IsNil)
	c.Assert(norm, qt.Equals, "OPERATOR")

	res, err := s.Update(ctx, role)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Succeeded, qt.IsTrue)

	got, err := newRoleStore(c, f).FindByName(ctx, "OPERATOR")
	c.Assert(err, qt.IsNil)
	c.Assert(got.ID, qt.Equals, role.ID)
	got, err = s.FindByName(ctx, "ADMIN")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)
}

func TestRoleStoreCreateFailureIsLoggedOnce(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := identitytest.NewFactory(t)
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core).Sugar()
	roles, err := repo.NewRolesRepo(ctx, f, log)
	c.Assert(err, qt.IsNil)
	roleClaims, err := repo.NewRoleClaimsRepo(ctx, f, log)
	c.Assert(err, qt.IsNil)
	s := store.NewRoleStore(store.RoleAccessors{Roles: roles, Claims: roleClaims}, log)
	defer s.Close()

	_, err = s.Create(ctx, entity.NewRole("Admin"))
	c.Assert(err, qt.IsNil)
	res, err := s.Create(ctx, entity.NewRole("Admin"))
	c.Assert(err, qt.IsNil)
	c.Assert(res.Succeeded, qt.IsFalse)

	entries := logs.All()
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Message, qt.Equals, "create role")
}
