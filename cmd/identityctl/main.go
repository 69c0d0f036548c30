// Command identityctl manages users and roles in the identity tables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

func main() {
	// best-effort: without a .env the real environment is used
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs. Fields left empty are filled from the
// environment before the first command runs.
type app struct {
	opts   identity.Options
	hasher identity.PasswordHasher
	out    io.Writer
	sync   func() error
}

func (a *app) init() error {
	if a.hasher == nil {
		a.hasher = identity.BcryptHasher{}
	}
	if a.opts.Logger == nil {
		lg, err := utilities.Init(utilities.ConfigFromEnv())
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		a.opts.Logger = lg.Sugar()
		a.sync = lg.Sync
	}
	if a.opts.Factory != nil {
		return nil
	}
	cfg, err := database.ConfigFromEnv()
	if err != nil {
		return err
	}
	opts, err := identity.OptionsFromEnv(database.NewConnectionFactory(cfg), a.opts.Logger)
	if err != nil {
		return err
	}
	a.opts = opts
	return nil
}

func (a *app) log() *zap.SugaredLogger { return a.opts.Logger }

// withStores opens the stores for one command and closes them afterwards.
func (a *app) withStores(ctx context.Context, fn func(*identity.Stores) error) error {
	s, err := identity.NewStores(ctx, a.opts)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.log().Warnw("close stores", "err", err)
		}
	}()
	return fn(s)
}

func newRootCmd(a *app, out io.Writer) *cobra.Command {
	a.out = out
	root := &cobra.Command{
		Use:          "identityctl",
		Short:        "Manage identity users and roles",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.sync != nil {
				_ = a.sync()
			}
		},
	}
	root.SetOut(out)
	root.AddCommand(newPingCmd(a), newUserCmd(a), newRoleCmd(a))
	return root
}
