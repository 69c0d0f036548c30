package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

var roleColumns = []string{"Id", "Name", "NormalizedName", "ConcurrencyStamp"}

func scanRole(s scanner) (*entity.Role, error) {
	var r entity.Role
	if err := s.Scan(&r.ID, &r.Name, &r.NormalizedName, &r.ConcurrencyStamp); err != nil {
		return nil, fmt.Errorf("scan role: %w", err)
	}
	return &r, nil
}

func roleParams(r *entity.Role) map[string]any {
	return map[string]any{"Id": r.ID, "Name": r.Name, "NormalizedName": r.NormalizedName, "ConcurrencyStamp": r.ConcurrencyStamp}
}

// RolesRepo is the accessor for the Roles table. Update also replaces the
// role's claims.
type RolesRepo struct {
	conn
	insertQ, updateQ, deleteQ, byIDQ, byNameQ string
	claims                                    roleClaimsSQL
}

func NewRolesRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*RolesRepo, error) {
	c, err := open(ctx, f, log)
	if err != nil {
		return nil, err
	}
	ids := c.ids
	t := ids.TableName("Roles")
	col := ids.ColumnName
	from := "from " + t + " where "
	return &RolesRepo{
		conn: c,
		insertQ: fmt.Sprintf("insert into %s (%s) values (%s, :Name, :NormalizedName, :ConcurrencyStamp)",
			t, ids.Columns("", roleColumns...), ids.Placeholder("Id")),
		updateQ: fmt.Sprintf("update %s set %s = :Name, %s = :NormalizedName, %s = :ConcurrencyStamp where %s = %s",
			t, col("Name"), col("NormalizedName"), col("ConcurrencyStamp"), col("Id"), ids.Placeholder("Id")),
		deleteQ: fmt.Sprintf("delete from %s where %s = %s", t, col("Id"), ids.Placeholder("Id")),
		byIDQ:   ids.SelectOne(ids.Columns("", roleColumns...), from+col("Id")+" = "+ids.Placeholder("Id")),
		byNameQ: ids.SelectOne(ids.Columns("", roleColumns...), from+col("NormalizedName")+" = :NormalizedName"),
		claims:  newRoleClaimsSQL(ids),
	}, nil
}

func (r *RolesRepo) Create(ctx context.Context, role *entity.Role) error {
	if err := execOne(ctx, r.db, r.insertQ, roleParams(role)); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (r *RolesRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, r.db, r.deleteQ, map[string]any{"Id": id})
}

func (r *RolesRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Role, error) {
	return queryOne(ctx, r.db, r.byIDQ, map[string]any{"Id": id}, scanRole)
}

// FindByName looks a role up by normalized name.
func (r *RolesRepo) FindByName(ctx context.Context, normalizedName string) (*entity.Role, error) {
	return queryOne(ctx, r.db, r.byNameQ, map[string]any{"NormalizedName": normalizedName}, scanRole)
}

// Update writes the role and, when claims is non-empty, replaces its claims
// in the same transaction.
func (r *RolesRepo) Update(ctx context.Context, role *entity.Role, claims []entity.RoleClaim) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := execOne(ctx, tx, r.updateQ, roleParams(role)); err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		if len(claims) == 0 {
			return nil
		}
		if _, err := exec(ctx, tx, r.claims.deleteForRoleQ, map[string]any{"RoleId": role.ID}); err != nil {
			return fmt.Errorf("delete role claims: %w", err)
		}
		for _, c := range claims {
			if c.ID == 0 {
				c.ID = utilities.NewSnowflakeID()
			}
			c.RoleID = role.ID
			if err := execOne(ctx, tx, r.claims.insertQ, roleClaimParams(c)); err != nil {
				return fmt.Errorf("insert role claim %s: %w", c.ClaimType, err)
			}
		}
		return nil
	})
}
