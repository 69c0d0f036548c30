package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/repo"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDisposed        = errors.New("store is closed")
	ErrRoleNotFound    = errors.New("role not found")
)

func invalid(what string) error { return fmt.Errorf("%w: %s", ErrInvalidArgument, what) }

// Error describes why a store operation failed.
type Error struct {
	Code        string
	Description string
}

// Result is the outcome of a store write.
type Result struct {
	Succeeded bool
	Errors    []Error
}

var Success = Result{Succeeded: true}

func Failed(errs ...Error) Result { return Result{Errors: errs} }

func (r Result) String() string {
	if r.Succeeded {
		return "Succeeded"
	}
	codes := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		codes[i] = e.Code
	}
	return "Failed : " + strings.Join(codes, ",")
}

// failure builds the failed Result reported for err. The description never
// carries driver detail.
func failure(err error, description string) Result {
	code := "DefaultError"
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		code = "Duplicate"
	case errors.Is(err, repo.ErrNotAffected):
		code = "NotFound"
	}
	return Failed(Error{Code: code, Description: description})
}

// UsersAccessor reads and writes the Users table and owns the replacement
// of a user's child rows.
type UsersAccessor interface {
	Create(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByName(ctx context.Context, normalizedUserName string) (*entity.User, error)
	FindByEmail(ctx context.Context, normalizedEmail string) (*entity.User, error)
	FindByLogin(ctx context.Context, loginProvider, providerKey string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User, claims []entity.UserClaim, roles []entity.UserRole, logins []entity.UserLogin, tokens []entity.UserToken) error
	GetUsersInRole(ctx context.Context, normalizedRoleName string) ([]*entity.User, error)
	GetUsersForClaim(ctx context.Context, claim entity.Claim) ([]*entity.User, error)
	Close() error
}

type RolesAccessor interface {
	Create(ctx context.Context, role *entity.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Role, error)
	FindByName(ctx context.Context, normalizedName string) (*entity.Role, error)
	Update(ctx context.Context, role *entity.Role, claims []entity.RoleClaim) error
	Close() error
}

type UserClaimsAccessor interface {
	GetClaims(ctx context.Context, userID uuid.UUID) ([]entity.UserClaim, error)
	Close() error
}

type UserLoginsAccessor interface {
	GetLogins(ctx context.Context, userID uuid.UUID) ([]entity.UserLogin, error)
	Close() error
}

type UserTokensAccessor interface {
	GetTokens(ctx context.Context, userID uuid.UUID) ([]entity.UserToken, error)
	FindToken(ctx context.Context, userID uuid.UUID, loginProvider, name string) (*entity.UserToken, error)
	Close() error
}

type UserRolesAccessor interface {
	GetRoles(ctx context.Context, userID uuid.UUID) ([]*entity.Role, error)
	Close() error
}

type RoleClaimsAccessor interface {
	GetClaims(ctx context.Context, roleID uuid.UUID) ([]entity.RoleClaim, error)
	Close() error
}

type closer interface{ Close() error }

func closeAll(cs ...closer) error {
	var errs []error
	for _, c := range cs {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func parseID(id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.Nil, invalid("id is empty")
	}
	v, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: id %q: %v", ErrInvalidArgument, id, err)
	}
	return v, nil
}
