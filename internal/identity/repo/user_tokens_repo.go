package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
)

var userTokenColumns = []string{"UserId", "LoginProvider", "Name", "Value"}

type userTokensSQL struct {
	insertQ, deleteForUserQ, byUserQ, findQ string
}

func newUserTokensSQL(ids database.Identifiers) userTokensSQL {
	t := ids.TableName("UserTokens")
	col := ids.ColumnName
	cols := ids.Columns("", userTokenColumns...)
	return userTokensSQL{
		insertQ: fmt.Sprintf("insert into %s (%s) values (%s, :LoginProvider, :Name, :Value)",
			t, cols, ids.Placeholder("UserId")),
		deleteForUserQ: fmt.Sprintf("delete from %s where %s = %s", t, col("UserId"), ids.Placeholder("UserId")),
		byUserQ: fmt.Sprintf("select %s from %s where %s = %s order by %s, %s",
			cols, t, col("UserId"), ids.Placeholder("UserId"), col("LoginProvider"), col("Name")),
		findQ: ids.SelectOne(cols, fmt.Sprintf("from %s where %s = %s and %s = :LoginProvider and %s = :Name",
			t, col("UserId"), ids.Placeholder("UserId"), col("LoginProvider"), col("Name"))),
	}
}

func userTokenParams(t entity.UserToken) map[string]any {
	return map[string]any{"UserId": t.UserID, "LoginProvider": t.LoginProvider, "Name": t.Name, "Value": t.Value}
}

func scanUserToken(s scanner) (*entity.UserToken, error) {
	var t entity.UserToken
	if err := s.Scan(&t.UserID, &t.LoginProvider, &t.Name, &t.Value); err != nil {
		return nil, fmt.Errorf("scan user token: %w", err)
	}
	return &t, nil
}

type UserTokensRepo struct {
	conn
	q userTokensSQL
}

func NewUserTokensRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*UserTokensRepo, error) {
	c, err := open(ctx, f, log)
	if err != nil {
		return nil, err
	}
	return &UserTokensRepo{conn: c, q: newUserTokensSQL(c.ids)}, nil
}

func (r *UserTokensRepo) GetTokens(ctx context.Context, userID uuid.UUID) ([]entity.UserToken, error) {
	tokens, err := query(ctx, r.db, r.q.byUserQ, map[string]any{"UserId": userID}, scanUserToken)
	if err != nil {
		return nil, fmt.Errorf("query user tokens: %w", err)
	}
	out := make([]entity.UserToken, len(tokens))
	for i, t := range tokens {
		out[i] = *t
	}
	return out, nil
}

// FindToken returns nil, nil when the user has no such token.
func (r *UserTokensRepo) FindToken(ctx context.Context, userID uuid.UUID, loginProvider, name string) (*entity.UserToken, error) {
	return queryOne(ctx, r.db, r.q.findQ, map[string]any{"UserId": userID, "LoginProvider": loginProvider, "Name": name}, scanUserToken)
}
