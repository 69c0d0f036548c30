// Package identity wires the table accessors into user and role stores.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/store"
)

// Variant selects how users relate to a tenant table.
type Variant string

const (
	VariantPlain   Variant = "plain"
	VariantAccount Variant = "account"
	VariantEntity  Variant = "entity"
)

type Options struct {
	Factory repo.ConnectionFactory
	Variant Variant
	Logger  *zap.SugaredLogger
}

// OptionsFromEnv reads the store variant; the caller supplies the factory
// and logger.
func OptionsFromEnv(f repo.ConnectionFactory, log *zap.SugaredLogger) (Options, error) {
	var cfg struct {
		Variant Variant `env:"IDENTITY_STORE_VARIANT" envDefault:"plain"`
	}
	if err := env.Parse(&cfg); err != nil {
		return Options{}, fmt.Errorf("parse env: %w", err)
	}
	opts := Options{Factory: f, Variant: cfg.Variant, Logger: log}
	switch opts.Variant {
	case VariantPlain, VariantAccount, VariantEntity:
	default:
		return Options{}, fmt.Errorf("unknown store variant %q", opts.Variant)
	}
	return opts, nil
}

func (o Options) logger() *zap.SugaredLogger {
	if o.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return o.Logger
}

type closer interface{ Close() error }

// opened tracks accessors created so far so a failed setup can release them.
type opened []closer

func (o *opened) add(c closer) { *o = append(*o, c) }

func (o opened) close() {
	for _, c := range o {
		_ = c.Close()
	}
}

// NewUsersAccessor opens the Users accessor for the configured variant.
func NewUsersAccessor(ctx context.Context, opts Options) (store.UsersAccessor, error) {
	log := opts.logger()
	switch opts.Variant {
	case VariantPlain, "":
		r, err := repo.NewUsersRepo(ctx, opts.Factory, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	case VariantAccount:
		r, err := repo.NewAccountUsersRepo(ctx, opts.Factory, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	case VariantEntity:
		r, err := repo.NewEntityUsersRepo(ctx, opts.Factory, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store variant %q", opts.Variant)
	}
}

// NewUserStore opens every accessor a user store needs.
func NewUserStore(ctx context.Context, opts Options) (*store.UserStore, error) {
	if opts.Factory == nil {
		return nil, errors.New("connection factory is required")
	}
	log := opts.logger()
	var done opened

	users, err := NewUsersAccessor(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open users: %w", err)
	}
	done.add(users)
	roles, err := repo.NewRolesRepo(ctx, opts.Factory, log)
	if err != nil {
		done.close()
		return nil, fmt.Errorf("open roles: %w", err)
	}
	done.add(roles)
	claims, err := repo.NewUserClaimsRepo(ctx, opts.Factory, log)
	if err != nil {
		done.close()
		return nil, fmt.Errorf("open user claims: %w", err)
	}
	done.add(claims)
	logins, err := repo.NewUserLoginsRepo(ctx, opts.Factory, log)
	if err != nil {
		done.close()
		return nil, fmt.Errorf("open user logins: %w", err)
	}
	done.add(logins)
	tokens, err := repo.NewUserTokensRepo(ctx, opts.Factory, log)
	if err != nil {
		done.close()
		return nil, fmt.Errorf("open user tokens: %w", err)
	}
	done.add(tokens)
	userRoles, err := repo.NewUserRolesRepo(ctx, opts.Factory, log)
	if err != nil {
		done.close()
		return nil, fmt.Errorf("open user roles: %w", err)
	}

	return store.NewUserStore(store.UserAccessors{
		Users:     users,
		Roles:     roles,
		Claims:    claims,
		Logins:    logins,
		Tokens:    tokens,
		UserRoles: userRoles,
	}, log), nil
}

func NewRoleStore(ctx context.Context, opts Options) (*store.RoleStore, error) {
	if opts.Factory == nil {
		return nil, errors.New("connection factory is required")
	}
	log := opts.logger()
	roles, err := repo.NewRolesRepo(ctx, opts.Factory, log)
	if err != nil {
		return nil, fmt.Errorf("open roles: %w", err)
	}
	claims, err := repo.NewRoleClaimsRepo(ctx, opts.Factory, log)
	if err != nil {
		_ = roles.Close()
		return nil, fmt.Errorf("open role claims: %w", err)
	}
	return store.NewRoleStore(store.RoleAccessors{Roles: roles, Claims: claims}, log), nil
}

// Stores bundles the user and role store of one unit of work.
type Stores struct {
	Users *store.UserStore
	Roles *store.RoleStore
}

func NewStores(ctx context.Context, opts Options) (*Stores, error) {
	users, err := NewUserStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	roles, err := NewRoleStore(ctx, opts)
	if err != nil {
		_ = users.Close()
		return nil, err
	}
	return &Stores{Users: users, Roles: roles}, nil
}

func (s *Stores) Close() error {
	return errors.Join(s.Users.Close(), s.Roles.Close())
}
