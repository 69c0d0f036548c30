package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/identitytest"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/repo"
)

func run(c *qt.C, f repo.ConnectionFactory, args ...string) (string, error) {
	a := &app{
		opts:   identity.Options{Factory: f, Variant: identity.VariantPlain, Logger: zaptest.NewLogger(c.TB).Sugar()},
		hasher: identity.BcryptHasher{Cost: 4},
	}
	var out bytes.Buffer
	root := newRootCmd(a, &out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	out, err := run(c, identitytest.NewFactory(t), "ping")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "ok\n")
}

func TestUserCommands(t *testing.T) {
	c := qt.New(t)
	f := identitytest.NewFactory(t)

	_, err := run(c, f, "role", "create", "Admin")
	c.Assert(err, qt.IsNil)
	_, err = run(c, f, "user", "create", "--name", "alice", "--email", "alice@example.com", "--password", "s3cret")
	c.Assert(err, qt.IsNil)
	_, err = run(c, f, "user", "add-role", "alice", "admin")
	c.Assert(err, qt.IsNil)
	_, err = run(c, f, "user", "add-claim", "alice", "dept", "eng")
	c.Assert(err, qt.IsNil)

	out, err := run(c, f, "user", "show", "alice")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "alice@example.com")
	c.Assert(out, qt.Matches, `(?s).*Roles\s+Admin\n.*`)
	c.Assert(out, qt.Matches, `(?s).*Claims\s+dept=eng\n.*`)

	s, err := identity.NewUserStore(context.Background(), identity.Options{Factory: f})
	c.Assert(err, qt.IsNil)
	defer s.Close()
	u, err := s.FindByName(context.Background(), "ALICE")
	c.Assert(err, qt.IsNil)
	c.Assert(u.PasswordHash, qt.IsNotNil)
	c.Assert(identity.BcryptHasher{}.Verify(*u.PasswordHash, "s3cret"), qt.IsTrue)
}

func TestUserCommandErrors(t *testing.T) {
	c := qt.New(t)
	f := identitytest.NewFactory(t)

	_, err := run(c, f, "user", "create")
	c.Assert(err, qt.ErrorMatches, `required flag\(s\) "name" not set`)

	_, err = run(c, f, "user", "show", "nobody")
	c.Assert(err, qt.ErrorIs, errUserNotFound)

	_, err = run(c, f, "user", "create", "--name", "bob")
	c.Assert(err, qt.IsNil)
	_, err = run(c, f, "user", "create", "--name", "bob")
	c.Assert(err, qt.Not(qt.IsNil))
	c.Assert(strings.HasPrefix(err.Error(), "Failed : Duplicate"), qt.IsTrue)

	_, err = run(c, f, "user", "add-role", "bob", "missing")
	c.Assert(err, qt.ErrorMatches, "role not found.*")
}

func TestUserVerifyPassword(t *testing.T) {
	c := qt.New(t)
	f := identitytest.NewFactory(t)

	_, err := run(c, f, "user", "create", "--name", "alice", "--password", "s3cret")
	c.Assert(err, qt.IsNil)
	_, err = run(c, f, "user", "create", "--name", "bob")
	c.Assert(err, qt.IsNil)

	out, err := run(c, f, "user", "verify-password", "alice", "--password", "s3cret")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Equals, "ok\n")

	_, err = run(c, f, "user", "verify-password", "alice", "--password", "wrong")
	c.Assert(err, qt.ErrorIs, errPasswordMismatch)

	// no stored hash never matches
	_, err = run(c, f, "user", "verify-password", "bob", "--password", "")
	c.Assert(err, qt.ErrorIs, errPasswordMismatch)
}
