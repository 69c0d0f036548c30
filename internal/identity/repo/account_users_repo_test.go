package repo_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/identitytest"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/repo"
)

func TestAccountUsersRepo(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r, err := repo.NewAccountUsersRepo(ctx, identitytest.NewFactory(t), nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	u := newUser("alice", "alice@example.com")
	c.Assert(r.Create(ctx, u), qt.IsNil)
	c.Assert(u.Account, qt.IsNotNil)
	c.Assert(*u.AccountID, qt.Equals, u.Account.ID)
	c.Assert(u.Account.Email, qt.Equals, "alice@example.com")

	got, err := r.FindByName(ctx, "ALICE")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, u)

	u.Account.City = "Lisbon"
	c.Assert(r.UpdateAccount(ctx, u.Account), qt.IsNil)

	acc, err := r.GetAccount(ctx, u.Account.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(acc.City, qt.Equals, "Lisbon")

	// a second user joining the same account
	bob := newUser("bob", "bob@example.com")
	bob.AccountID = u.AccountID
	c.Assert(r.UsersRepo.Create(ctx, bob), qt.IsNil)

	members, err := r.GetUsersForAccount(ctx, u.Account.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(members, qt.HasLen, 2)
	c.Assert(members[0].Account, qt.Equals, members[1].Account)
}

func TestAccountUsersRepoFindByLoginFillsAccount(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r, err := repo.NewAccountUsersRepo(ctx, identitytest.NewFactory(t), nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	u := newUser("alice", "alice@example.com")
	c.Assert(r.Create(ctx, u), qt.IsNil)
	c.Assert(r.Update(ctx, u, nil, nil,
		[]entity.UserLogin{{LoginInfo: entity.LoginInfo{LoginProvider: "github", ProviderKey: "42"}}},
		nil), qt.IsNil)

	got, err := r.FindByLogin(ctx, "github", "42")
	c.Assert(err, qt.IsNil)
	c.Assert(got.ID, qt.Equals, u.ID)
	c.Assert(got.Account, qt.IsNotNil)
	c.Assert(got.Account.ID, qt.Equals, u.Account.ID)
	c.Assert(got.Account.Email, qt.Equals, "alice@example.com")

	got, err = r.FindByLogin(ctx, "github", "43")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)
}

func TestAccountUsersRepoCreateRollsBack(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r, err := repo.NewAccountUsersRepo(ctx, identitytest.NewFactory(t), nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	c.Assert(r.Create(ctx, newUser("alice", "alice@example.com")), qt.IsNil)

	dup := newUser("alice", "other@example.com")
	c.Assert(r.Create(ctx, dup), qt.ErrorIs, repo.ErrDuplicate)

	acc, err := r.GetAccount(ctx, dup.Account.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(acc, qt.IsNil)
}

func TestEntityUsersRepo(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	r, err := repo.NewEntityUsersRepo(ctx, identitytest.NewFactory(t), nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	org := entity.NewEntity("Acme")
	org.TaxCode = "PT123"
	u := newUser("alice", "alice@acme.test")
	u.Entity = org
	c.Assert(r.Create(ctx, u), qt.IsNil)

	bob := newUser("bob", "bob@acme.test")
	bob.EntityID = &org.ID
	c.Assert(r.Create(ctx, bob), qt.IsNil)

	got, err := r.FindByEmail(ctx, "BOB@ACME.TEST")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Entity, qt.DeepEquals, org)

	org.RegistrationNumber = "R-9"
	c.Assert(r.UpdateEntity(ctx, org), qt.IsNil)

	members, err := r.GetUsersForEntity(ctx, org.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(members, qt.HasLen, 2)
	for _, m := range members {
		c.Assert(m.Entity.RegistrationNumber, qt.Equals, "R-9")
	}

	dup := newUser("carol", "alice@acme.test")
	c.Assert(r.Create(ctx, dup), qt.ErrorIs, repo.ErrDuplicate)
	e, err := r.GetEntity(ctx, dup.Entity.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(e, qt.IsNil)
}
