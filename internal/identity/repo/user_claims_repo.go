package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
)

type userClaimsSQL struct {
	insertQ, deleteForUserQ, byUserQ string
}

func newUserClaimsSQL(ids database.Identifiers) userClaimsSQL {
	t := ids.TableName("UserClaims")
	col := ids.ColumnName
	return userClaimsSQL{
		insertQ: fmt.Sprintf("insert into %s (%s) values (:Id, %s, :ClaimType, :ClaimValue)",
			t, ids.Columns("", "Id", "UserId", "ClaimType", "ClaimValue"), ids.Placeholder("UserId")),
		deleteForUserQ: fmt.Sprintf("delete from %s where %s = %s", t, col("UserId"), ids.Placeholder("UserId")),
		byUserQ: fmt.Sprintf("select %s from %s where %s = %s order by %s",
			ids.Columns("", "Id", "UserId", "ClaimType", "ClaimValue"), t, col("UserId"), ids.Placeholder("UserId"), col("Id")),
	}
}

func userClaimParams(c entity.UserClaim) map[string]any {
	return map[string]any{"Id": c.ID, "UserId": c.UserID, "ClaimType": c.ClaimType, "ClaimValue": c.ClaimValue}
}

func scanUserClaim(s scanner) (entity.UserClaim, error) {
	var c entity.UserClaim
	if err := s.Scan(&c.ID, &c.UserID, &c.ClaimType, &c.ClaimValue); err != nil {
		return c, fmt.Errorf("scan user claim: %w", err)
	}
	return c, nil
}

// UserClaimsRepo reads the UserClaims table. Writes go through UsersRepo.Update.
type UserClaimsRepo struct {
	conn
	q userClaimsSQL
}

func NewUserClaimsRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*UserClaimsRepo, error) {
	c, err := open(ctx, f, log)
	if err != nil {
		return nil, err
	}
	return &UserClaimsRepo{conn: c, q: newUserClaimsSQL(c.ids)}, nil
}

// GetClaims returns the claims stored for the user, oldest first.
func (r *UserClaimsRepo) GetClaims(ctx context.Context, userID uuid.UUID) ([]entity.UserClaim, error) {
	claims, err := query(ctx, r.db, r.q.byUserQ, map[string]any{"UserId": userID}, scanUserClaim)
	if err != nil {
		return nil, fmt.Errorf("query user claims: %w", err)
	}
	return claims, nil
}
