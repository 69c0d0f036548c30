package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

var userColumns = []string{
	"Id", "UserName", "NormalizedUserName", "Email", "NormalizedEmail", "EmailConfirmed",
	"PasswordHash", "SecurityStamp", "ConcurrencyStamp", "PhoneNumber", "PhoneNumberConfirmed",
	"TwoFactorEnabled", "LockoutEnd", "LockoutEnabled", "AccessFailedCount",
	"FirstName", "LastName", "CultureInfo", "State", "DebugMode", "CreatedAt",
}

// tenant names the optional owner column of the Users table.
type tenant string

const (
	noTenant      tenant = ""
	accountTenant tenant = "AccountId"
	entityTenant  tenant = "EntityId"
)

// UsersRepo is the accessor for the Users table. Update also owns the
// replacement of the user's claims, roles, logins and tokens.
type UsersRepo struct {
	conn
	tenant tenant
	// hydrate fills tenant links after a read.
	hydrate func(ctx context.Context, users []*entity.User) error

	insertQ, updateQ, deleteQ      string
	byIDQ, byNameQ, byEmailQ       string
	byLoginQ                       string
	inRoleQ, forClaimQ, forTenantQ string

	claims userClaimsSQL
	roles  userRolesSQL
	logins userLoginsSQL
	tokens userTokensSQL
}

func NewUsersRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*UsersRepo, error) {
	return newUsersRepo(ctx, f, log, noTenant)
}

func newUsersRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger, t tenant) (*UsersRepo, error) {
	c, err := open(ctx, f, log)
	if err != nil {
		return nil, err
	}
	r := &UsersRepo{conn: c, tenant: t}
	r.build()
	return r, nil
}

func (r *UsersRepo) columnNames() []string {
	if r.tenant == noTenant {
		return userColumns
	}
	return append(append([]string(nil), userColumns...), string(r.tenant))
}

func (r *UsersRepo) build() {
	ids := r.ids
	names := r.columnNames()
	users := ids.TableName("Users")
	cols := ids.Columns("u", names...)
	col := ids.ColumnName

	values := make([]string, len(names))
	sets := make([]string, 0, len(names))
	for i, n := range names {
		switch n {
		case "Id", string(accountTenant), string(entityTenant):
			values[i] = ids.Placeholder(n)
		case "CultureInfo":
			values[i] = "coalesce(:CultureInfo, 'en')"
		default:
			values[i] = ":" + n
		}
		if n != "Id" && n != "CreatedAt" {
			sets = append(sets, col(n)+" = "+values[i])
		}
	}

	r.insertQ = fmt.Sprintf("insert into %s (%s) values (%s)", users, ids.Columns("", names...), strings.Join(values, ", "))
	r.updateQ = fmt.Sprintf("update %s set %s where %s = %s", users, strings.Join(sets, ", "), col("Id"), ids.Placeholder("Id"))
	r.deleteQ = fmt.Sprintf("delete from %s where %s = %s", users, col("Id"), ids.Placeholder("Id"))

	from := "from " + users + " u where "
	r.byIDQ = ids.SelectOne(cols, from+ids.Column("u", "Id")+" = "+ids.Placeholder("Id"))
	r.byNameQ = ids.SelectOne(cols, from+ids.Column("u", "NormalizedUserName")+" = :NormalizedUserName")
	r.byEmailQ = ids.SelectOne(cols, from+ids.Column("u", "NormalizedEmail")+" = :NormalizedEmail")

	r.byLoginQ = ids.SelectOne(cols, fmt.Sprintf("from %s u inner join %s ul on ul.%s = u.%s where ul.%s = :LoginProvider and ul.%s = :ProviderKey",
		users, ids.TableName("UserLogins"), col("UserId"), col("Id"), col("LoginProvider"), col("ProviderKey")))

	r.inRoleQ = fmt.Sprintf("select %s from %s u inner join %s ur on ur.%s = u.%s inner join %s r on r.%s = ur.%s where r.%s = :NormalizedName",
		cols, users,
		ids.TableName("UserRoles"), col("UserId"), col("Id"),
		ids.TableName("Roles"), col("Id"), col("RoleId"),
		col("NormalizedName"))
	r.forClaimQ = fmt.Sprintf("select %s from %s u where exists (select 1 from %s uc where uc.%s = u.%s and uc.%s = :ClaimType and uc.%s = :ClaimValue)",
		cols, users, ids.TableName("UserClaims"), col("UserId"), col("Id"), col("ClaimType"), col("ClaimValue"))
	if r.tenant != noTenant {
		r.forTenantQ = fmt.Sprintf("select %s from %s u where %s = %s",
			cols, users, ids.Column("u", string(r.tenant)), ids.Placeholder(string(r.tenant)))
	}

	r.claims = newUserClaimsSQL(ids)
	r.roles = newUserRolesSQL(ids)
	r.logins = newUserLoginsSQL(ids)
	r.tokens = newUserTokensSQL(ids)
}

func (r *UsersRepo) params(u *entity.User) map[string]any {
	p := map[string]any{
		"Id":                   u.ID,
		"UserName":             u.UserName,
		"NormalizedUserName":   u.NormalizedUserName,
		"Email":                u.Email,
		"NormalizedEmail":      u.NormalizedEmail,
		"EmailConfirmed":       u.EmailConfirmed,
		"PasswordHash":         u.PasswordHash,
		"SecurityStamp":        u.SecurityStamp,
		"ConcurrencyStamp":     u.ConcurrencyStamp,
		"PhoneNumber":          u.PhoneNumber,
		"PhoneNumberConfirmed": u.PhoneNumberConfirmed,
		"TwoFactorEnabled":     u.TwoFactorEnabled,
		"LockoutEnd":           u.LockoutEnd,
		"LockoutEnabled":       u.LockoutEnabled,
		"AccessFailedCount":    u.AccessFailedCount,
		"FirstName":            u.FirstName,
		"LastName":             u.LastName,
		"CultureInfo":          u.CultureInfo,
		"State":                u.State,
		"DebugMode":            u.DebugMode,
		"CreatedAt":            u.CreatedAt,
	}
	switch r.tenant {
	case accountTenant:
		p[string(accountTenant)] = u.AccountID
	case entityTenant:
		p[string(entityTenant)] = u.EntityID
	}
	return p
}

func (r *UsersRepo) scan(s scanner) (*entity.User, error) {
	var (
		u           entity.User
		cultureInfo sql.NullString
		lockoutEnd  sql.NullTime
		owner       uuid.NullUUID
	)
	dest := []any{
		&u.ID, &u.UserName, &u.NormalizedUserName, &u.Email, &u.NormalizedEmail, &u.EmailConfirmed,
		&u.PasswordHash, &u.SecurityStamp, &u.ConcurrencyStamp, &u.PhoneNumber, &u.PhoneNumberConfirmed,
		&u.TwoFactorEnabled, &lockoutEnd, &u.LockoutEnabled, &u.AccessFailedCount,
		&u.FirstName, &u.LastName, &cultureInfo, &u.State, &u.DebugMode, &u.CreatedAt,
	}
	if r.tenant != noTenant {
		dest = append(dest, &owner)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if cultureInfo.Valid {
		u.CultureInfo = &cultureInfo.String
	}
	if lockoutEnd.Valid {
		u.LockoutEnd = &lockoutEnd.Time
	}
	if owner.Valid {
		switch r.tenant {
		case accountTenant:
			u.AccountID = &owner.UUID
		case entityTenant:
			u.EntityID = &owner.UUID
		}
	}
	return &u, nil
}

// Create inserts a single user row. Failures are returned for the caller to
// log.
func (r *UsersRepo) Create(ctx context.Context, u *entity.User) error {
	return r.create(ctx, r.db, u)
}

func (r *UsersRepo) create(ctx context.Context, e sqlx.ExtContext, u *entity.User) error {
	if err := execOne(ctx, e, r.insertQ, r.params(u)); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Delete removes the user row. ErrNotAffected means no such user.
func (r *UsersRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.db, r.deleteQ, map[string]any{"Id": id})
}

// FindByID returns nil, nil when the user does not exist.
func (r *UsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.findOne(ctx, r.byIDQ, map[string]any{"Id": id})
}

// FindByName looks a user up by normalized user name.
func (r *UsersRepo) FindByName(ctx context.Context, normalizedUserName string) (*entity.User, error) {
	return r.findOne(ctx, r.byNameQ, map[string]any{"NormalizedUserName": normalizedUserName})
}

// FindByEmail looks a user up by normalized email.
func (r *UsersRepo) FindByEmail(ctx context.Context, normalizedEmail string) (*entity.User, error) {
	return r.findOne(ctx, r.byEmailQ, map[string]any{"NormalizedEmail": normalizedEmail})
}

// FindByLogin returns the user owning the external login, or nil.
func (r *UsersRepo) FindByLogin(ctx context.Context, loginProvider, providerKey string) (*entity.User, error) {
	return r.findOne(ctx, r.byLoginQ, map[string]any{"LoginProvider": loginProvider, "ProviderKey": providerKey})
}

// GetUsersInRole returns the members of the role with the given normalized name.
func (r *UsersRepo) GetUsersInRole(ctx context.Context, normalizedRoleName string) ([]*entity.User, error) {
	return r.find(ctx, r.inRoleQ, map[string]any{"NormalizedName": normalizedRoleName})
}

// GetUsersForClaim returns every user holding the claim.
func (r *UsersRepo) GetUsersForClaim(ctx context.Context, claim entity.Claim) ([]*entity.User, error) {
	return r.find(ctx, r.forClaimQ, map[string]any{"ClaimType": claim.Type, "ClaimValue": claim.Value})
}

func (r *UsersRepo) findOne(ctx context.Context, q string, arg map[string]any) (*entity.User, error) {
	users, err := r.find(ctx, q, arg)
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return users[0], nil
}

func (r *UsersRepo) find(ctx context.Context, q string, arg map[string]any) ([]*entity.User, error) {
	users, err := query(ctx, r.db, q, arg, r.scan)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	if r.hydrate != nil && len(users) > 0 {
		if err := r.hydrate(ctx, users); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// Update writes the scalar columns of u and, for every non-empty collection,
// replaces the rows stored for the user with the supplied ones. Everything
// runs in one transaction; nil or empty collections are left untouched.
func (r *UsersRepo) Update(ctx context.Context, u *entity.User, claims []entity.UserClaim, roles []entity.UserRole, logins []entity.UserLogin, tokens []entity.UserToken) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := execOne(ctx, tx, r.updateQ, r.params(u)); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		owner := map[string]any{"UserId": u.ID}
		if len(claims) > 0 {
			if _, err := exec(ctx, tx, r.claims.deleteForUserQ, owner); err != nil {
				return fmt.Errorf("delete user claims: %w", err)
			}
			for _, c := range claims {
				if c.ID == 0 {
					c.ID = utilities.NewSnowflakeID()
				}
				c.UserID = u.ID
				if err := execOne(ctx, tx, r.claims.insertQ, userClaimParams(c)); err != nil {
					return fmt.Errorf("insert user claim %s: %w", c.ClaimType, err)
				}
			}
		}
		if len(roles) > 0 {
			if _, err := exec(ctx, tx, r.roles.deleteForUserQ, owner); err != nil {
				return fmt.Errorf("delete user roles: %w", err)
			}
			for _, ur := range roles {
				ur.UserID = u.ID
				if err := execOne(ctx, tx, r.roles.insertQ, userRoleParams(ur)); err != nil {
					return fmt.Errorf("insert user role %s: %w", ur.RoleID, err)
				}
			}
		}
		if len(logins) > 0 {
			if _, err := exec(ctx, tx, r.logins.deleteForUserQ, owner); err != nil {
				return fmt.Errorf("delete user logins: %w", err)
			}
			for _, l := range logins {
				l.UserID = u.ID
				if err := execOne(ctx, tx, r.logins.insertQ, userLoginParams(l)); err != nil {
					return fmt.Errorf("insert user login %s: %w", l.LoginProvider, err)
				}
			}
		}
		if len(tokens) > 0 {
			if _, err := exec(ctx, tx, r.tokens.deleteForUserQ, owner); err != nil {
				return fmt.Errorf("delete user tokens: %w", err)
			}
			for _, t := range tokens {
				t.UserID = u.ID
				if err := execOne(ctx, tx, r.tokens.insertQ, userTokenParams(t)); err != nil {
					return fmt.Errorf("insert user token %s: %w", t.Name, err)
				}
			}
		}
		return nil
	})
}
