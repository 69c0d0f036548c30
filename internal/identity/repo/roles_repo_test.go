package repo_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/identitytest"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/repo"
)

func TestRolesRepo(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := identitytest.NewFactory(t)
	r, err := repo.NewRolesRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()
	claims, err := repo.NewRoleClaimsRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	defer claims.Close()

	role := entity.NewRole("Admin")
	c.Assert(r.Create(ctx, role), qt.IsNil)
	c.Assert(r.Create(ctx, entity.NewRole("admin")), qt.ErrorIs, repo.ErrDuplicate)

	got, err := r.FindByID(ctx, role.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, role)

	got, err = r.FindByName(ctx, "ADMIN")
	c.Assert(err, qt.IsNil)
	c.Assert(got.ID, qt.Equals, role.ID)

	role.Name = "Administrators"
	role.NormalizedName = "ADMINISTRATORS"
	c.Assert(r.Update(ctx, role, []entity.RoleClaim{{ClaimType: "perm", ClaimValue: "all"}}), qt.IsNil)
	c.Assert(r.Update(ctx, role, []entity.RoleClaim{{ClaimType: "perm", ClaimValue: "read"}}), qt.IsNil)

	got, err = r.FindByName(ctx, "ADMINISTRATORS")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Name, qt.Equals, "Administrators")

	rc, err := claims.GetClaims(ctx, role.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(rc, qt.HasLen, 1)
	c.Assert(rc[0].Claim(), qt.Equals, entity.Claim{Type: "perm", Value: "read"})
	c.Assert(rc[0].RoleID, qt.Equals, role.ID)

	c.Assert(r.Delete(ctx, role.ID), qt.IsNil)
	c.Assert(r.Delete(ctx, role.ID), qt.ErrorIs, repo.ErrNotAffected)
	got, err = r.FindByID(ctx, role.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)
}

func TestRolesRepoUpdateUnknownRole(t *testing.T) {
	c := qt.New(t)
	r, err := repo.NewRolesRepo(context.Background(), identitytest.NewFactory(t), nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	c.Assert(r.Update(context.Background(), entity.NewRole("ghost"), nil), qt.ErrorIs, repo.ErrNotAffected)
}

func TestChildAccessors(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	f := identitytest.NewFactory(t)
	users := newUsersRepo(c, f)
	roles, err := repo.NewRolesRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	defer roles.Close()
	userRoles, err := repo.NewUserRolesRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	defer userRoles.Close()
	logins, err := repo.NewUserLoginsRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	defer logins.Close()
	tokens, err := repo.NewUserTokensRepo(ctx, f, nil)
	c.Assert(err, qt.IsNil)
	defer tokens.Close()

	admin := entity.NewRole("Admin")
	c.Assert(roles.Create(ctx, admin), qt.IsNil)
	u := newUser("alice", "alice@example.com")
	c.Assert(users.Create(ctx, u), qt.IsNil)
	c.Assert(users.Update(ctx, u, nil,
		[]entity.UserRole{{RoleID: admin.ID}},
		[]entity.UserLogin{{LoginInfo: entity.LoginInfo{LoginProvider: "google", ProviderKey: "g-1", ProviderDisplayName: "Google"}}},
		[]entity.UserToken{{LoginProvider: "google", Name: "refresh", Value: "r-1"}}), qt.IsNil)

	c.Run("user roles", func(c *qt.C) {
		rs, err := userRoles.GetRoles(ctx, u.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(rs, qt.DeepEquals, []*entity.Role{admin})

		ur, err := userRoles.FindUserRole(ctx, u.ID, admin.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(ur, qt.DeepEquals, &entity.UserRole{UserID: u.ID, RoleID: admin.ID})

		ur, err = userRoles.FindUserRole(ctx, u.ID, uuid.New())
		c.Assert(err, qt.IsNil)
		c.Assert(ur, qt.IsNil)
	})

	c.Run("user logins", func(c *qt.C) {
		owner, err := users.FindByLogin(ctx, "google", "g-1")
		c.Assert(err, qt.IsNil)
		c.Assert(owner.ID, qt.Equals, u.ID)

		owner, err = users.FindByLogin(ctx, "google", "missing")
		c.Assert(err, qt.IsNil)
		c.Assert(owner, qt.IsNil)

		l, err := logins.FindUserLogin(ctx, "google", "g-1")
		c.Assert(err, qt.IsNil)
		c.Assert(l.ProviderDisplayName, qt.Equals, "Google")

		l, err = logins.FindUserLoginForUser(ctx, uuid.New(), "google", "g-1")
		c.Assert(err, qt.IsNil)
		c.Assert(l, qt.IsNil)

		l, err = logins.FindUserLoginForUser(ctx, u.ID, "google", "g-1")
		c.Assert(err, qt.IsNil)
		c.Assert(l.UserID, qt.Equals, u.ID)
	})

	c.Run("user tokens", func(c *qt.C) {
		ts, err := tokens.GetTokens(ctx, u.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(ts, qt.DeepEquals, []entity.UserToken{{UserID: u.ID, LoginProvider: "google", Name: "refresh", Value: "r-1"}})

		tok, err := tokens.FindToken(ctx, u.ID, "google", "refresh")
		c.Assert(err, qt.IsNil)
		c.Assert(tok.Value, qt.Equals, "r-1")

		tok, err = tokens.FindToken(ctx, u.ID, "google", "access")
		c.Assert(err, qt.IsNil)
		c.Assert(tok, qt.IsNil)
	})
}
