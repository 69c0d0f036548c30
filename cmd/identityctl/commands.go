package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/store"
)

var (
	errUserNotFound     = errors.New("user not found")
	errPasswordMismatch = errors.New("password does not match")
)

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.opts.Factory.Create(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func newUserCmd(a *app) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Create and inspect users",
	}
	userCmd.AddCommand(newUserCreateCmd(a), newUserShowCmd(a), newUserAddRoleCmd(a), newUserAddClaimCmd(a), newUserVerifyPasswordCmd(a))
	return userCmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := entity.NewUser(name)
			u.SetEmail(email)
			if password != "" {
				h, err := a.hasher.Hash(password)
				if err != nil {
					return fmt.Errorf("hash password: %w", err)
				}
				u.PasswordHash = &h
			}
			return a.withStores(cmd.Context(), func(s *identity.Stores) error {
				res, err := s.Users.Create(cmd.Context(), u)
				if err := resultErr(res, err); err != nil {
					return err
				}
				fmt.Fprintln(a.out, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "user name (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "initial password, stored as a bcrypt hash")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUserShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a user with roles and claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStores(ctx, func(s *identity.Stores) error {
				u, err := findUser(cmd, s, args[0])
				if err != nil {
					return err
				}
				roles, err := s.Users.GetRoles(ctx, u)
				if err != nil {
					return err
				}
				claims, err := s.Users.GetClaims(ctx, u)
				if err != nil {
					return err
				}
				cs := make([]string, len(claims))
				for i, c := range claims {
					cs[i] = c.Type + "=" + c.Value
				}
				email := ""
				if u.Email != nil {
					email = *u.Email
				}

				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "ID\t%s\n", u.ID)
				fmt.Fprintf(w, "UserName\t%s\n", u.UserName)
				fmt.Fprintf(w, "Email\t%s\n", email)
				fmt.Fprintf(w, "ConcurrencyStamp\t%s\n", u.ConcurrencyStamp)
				fmt.Fprintf(w, "Roles\t%s\n", strings.Join(roles, ","))
				fmt.Fprintf(w, "Claims\t%s\n", strings.Join(cs, ","))
				return w.Flush()
			})
		},
	}
}

func newUserVerifyPasswordCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "verify-password NAME",
		Short: "Check a password against the stored hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStores(cmd.Context(), func(s *identity.Stores) error {
				u, err := findUser(cmd, s, args[0])
				if err != nil {
					return err
				}
				if u.PasswordHash == nil || !a.hasher.Verify(*u.PasswordHash, password) {
					return errPasswordMismatch
				}
				fmt.Fprintln(a.out, "ok")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password to check (required)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserAddRoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-role NAME ROLE",
		Short: "Add a user to an existing role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStores(ctx, func(s *identity.Stores) error {
				u, err := findUser(cmd, s, args[0])
				if err != nil {
					return err
				}
				if err := s.Users.AddToRole(ctx, u, entity.Normalize(args[1])); err != nil {
					return err
				}
				return resultErr(s.Users.Update(ctx, u))
			})
		},
	}
}

func newUserAddClaimCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-claim NAME TYPE VALUE",
		Short: "Add a claim to a user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStores(ctx, func(s *identity.Stores) error {
				u, err := findUser(cmd, s, args[0])
				if err != nil {
					return err
				}
				if err := s.Users.AddClaims(ctx, u, []entity.Claim{{Type: args[1], Value: args[2]}}); err != nil {
					return err
				}
				return resultErr(s.Users.Update(ctx, u))
			})
		},
	}
}

func newRoleCmd(a *app) *cobra.Command {
	roleCmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles",
	}
	roleCmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := entity.NewRole(args[0])
			return a.withStores(cmd.Context(), func(s *identity.Stores) error {
				if err := resultErr(s.Roles.Create(cmd.Context(), role)); err != nil {
					return err
				}
				fmt.Fprintln(a.out, role.ID)
				return nil
			})
		},
	})
	return roleCmd
}

func findUser(cmd *cobra.Command, s *identity.Stores, name string) (*entity.User, error) {
	u, err := s.Users.FindByName(cmd.Context(), entity.Normalize(name))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s", errUserNotFound, name)
	}
	return u, nil
}

// resultErr turns a failed store Result into an error.
func resultErr(res store.Result, err error) error {
	if err != nil {
		return err
	}
	if !res.Succeeded {
		descs := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			descs[i] = e.Description
		}
		return fmt.Errorf("%s: %s", res, strings.Join(descs, "; "))
	}
	return nil
}
