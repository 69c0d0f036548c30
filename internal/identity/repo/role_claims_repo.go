package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
)

type roleClaimsSQL struct {
	insertQ, deleteForRoleQ, byRoleQ string
}

func newRoleClaimsSQL(ids database.Identifiers) roleClaimsSQL {
	t := ids.TableName("RoleClaims")
	col := ids.ColumnName
	return roleClaimsSQL{
		insertQ: fmt.Sprintf("insert into %s (%s) values (:Id, %s, :ClaimType, :ClaimValue)",
			t, ids.Columns("", "Id", "RoleId", "ClaimType", "ClaimValue"), ids.Placeholder("RoleId")),
		deleteForRoleQ: fmt.Sprintf("delete from %s where %s = %s", t, col("RoleId"), ids.Placeholder("RoleId")),
		byRoleQ: fmt.Sprintf("select %s from %s where %s = %s order by %s",
			ids.Columns("", "Id", "RoleId", "ClaimType", "ClaimValue"), t, col("RoleId"), ids.Placeholder("RoleId"), col("Id")),
	}
}

func roleClaimParams(c entity.RoleClaim) map[string]any {
	return map[string]any{"Id": c.ID, "RoleId": c.RoleID, "ClaimType": c.ClaimType, "ClaimValue": c.ClaimValue}
}

func scanRoleClaim(s scanner) (entity.RoleClaim, error) {
	var c entity.RoleClaim
	if err := s.Scan(&c.ID, &c.RoleID, &c.ClaimType, &c.ClaimValue); err != nil {
		return c, fmt.Errorf("scan role claim: %w", err)
	}
	return c, nil
}

// RoleClaimsRepo reads the RoleClaims table. Writes go through RolesRepo.Update.
type RoleClaimsRepo struct {
	conn
	q roleClaimsSQL
}

func NewRoleClaimsRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*RoleClaimsRepo, error) {
	c, err := open(ctx, f, log)
	if err != nil {
		return nil, err
	}
	return &RoleClaimsRepo{conn: c, q: newRoleClaimsSQL(c.ids)}, nil
}

func (r *RoleClaimsRepo) GetClaims(ctx context.Context, roleID uuid.UUID) ([]entity.RoleClaim, error) {
	claims, err := query(ctx, r.db, r.q.byRoleQ, map[string]any{"RoleId": roleID}, scanRoleClaim)
	if err != nil {
		return nil, fmt.Errorf("query role claims: %w", err)
	}
	return claims, nil
}
