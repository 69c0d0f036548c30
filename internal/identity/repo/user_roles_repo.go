package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
)

type userRolesSQL struct {
	insertQ, deleteForUserQ, rolesQ, findQ string
}

func newUserRolesSQL(ids database.Identifiers) userRolesSQL {
	t := ids.TableName("UserRoles")
	col := ids.ColumnName
	return userRolesSQL{
		insertQ: fmt.Sprintf("insert into %s (%s) values (%s, %s)",
			t, ids.Columns("", "UserId", "RoleId"), ids.Placeholder("UserId"), ids.Placeholder("RoleId")),
		deleteForUserQ: fmt.Sprintf("delete from %s where %s = %s", t, col("UserId"), ids.Placeholder("UserId")),
		rolesQ: fmt.Sprintf("select %s from %s r inner join %s ur on ur.%s = r.%s where ur.%s = %s order by r.%s",
			ids.Columns("r", roleColumns...), ids.TableName("Roles"), t,
			col("RoleId"), col("Id"), col("UserId"), ids.Placeholder("UserId"), col("NormalizedName")),
		findQ: ids.SelectOne(ids.Columns("", "UserId", "RoleId"), fmt.Sprintf("from %s where %s = %s and %s = %s",
			t, col("UserId"), ids.Placeholder("UserId"), col("RoleId"), ids.Placeholder("RoleId"))),
	}
}

func userRoleParams(ur entity.UserRole) map[string]any {
	return map[string]any{"UserId": ur.UserID, "RoleId": ur.RoleID}
}

func scanUserRole(s scanner) (*entity.UserRole, error) {
	var ur entity.UserRole
	if err := s.Scan(&ur.UserID, &ur.RoleID); err != nil {
		return nil, fmt.Errorf("scan user role: %w", err)
	}
	return &ur, nil
}

type UserRolesRepo struct {
	conn
	q userRolesSQL
}

func NewUserRolesRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*UserRolesRepo, error) {
	c, err := open(ctx, f, log)
	if err != nil {
		return nil, err
	}
	return &UserRolesRepo{conn: c, q: newUserRolesSQL(c.ids)}, nil
}

// GetRoles returns the roles the user is a member of.
func (r *UserRolesRepo) GetRoles(ctx context.Context, userID uuid.UUID) ([]*entity.Role, error) {
	roles, err := query(ctx, r.db, r.q.rolesQ, map[string]any{"UserId": userID}, scanRole)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	return roles, nil
}

// FindUserRole returns nil, nil when the user is not in the role.
func (r *UserRolesRepo) FindUserRole(ctx context.Context, userID, roleID uuid.UUID) (*entity.UserRole, error) {
	return queryOne(ctx, r.db, r.q.findQ, map[string]any{"UserId": userID, "RoleId": roleID}, scanUserRole)
}
