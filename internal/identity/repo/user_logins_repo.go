package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
)

var userLoginColumns = []string{"LoginProvider", "ProviderKey", "ProviderDisplayName", "UserId"}

type userLoginsSQL struct {
	insertQ, deleteForUserQ, byUserQ string
	byKeyQ, byUserKeyQ              string
}

func newUserLoginsSQL(ids database.Identifiers) userLoginsSQL {
	t := ids.TableName("UserLogins")
	col := ids.ColumnName
	cols := ids.Columns("", userLoginColumns...)
	key := fmt.Sprintf("%s = :LoginProvider and %s = :ProviderKey", col("LoginProvider"), col("ProviderKey"))
	return userLoginsSQL{
		insertQ: fmt.Sprintf("insert into %s (%s) values (:LoginProvider, :ProviderKey, :ProviderDisplayName, %s)",
			t, cols, ids.Placeholder("UserId")),
		deleteForUserQ: fmt.Sprintf("delete from %s where %s = %s", t, col("UserId"), ids.Placeholder("UserId")),
		byUserQ: fmt.Sprintf("select %s from %s where %s = %s order by %s, %s",
			cols, t, col("UserId"), ids.Placeholder("UserId"), col("LoginProvider"), col("ProviderKey")),
		byKeyQ:     ids.SelectOne(cols, "from "+t+" where "+key),
		byUserKeyQ: ids.SelectOne(cols, fmt.Sprintf("from %s where %s = %s and %s", t, col("UserId"), ids.Placeholder("UserId"), key)),
	}
}

func userLoginParams(l entity.UserLogin) map[string]any {
	return map[string]any{
		"LoginProvider":       l.LoginProvider,
		"ProviderKey":         l.ProviderKey,
		"ProviderDisplayName": l.ProviderDisplayName,
		"UserId":              l.UserID,
	}
}

func scanUserLogin(s scanner) (*entity.UserLogin, error) {
	var l entity.UserLogin
	if err := s.Scan(&l.LoginProvider, &l.ProviderKey, &l.ProviderDisplayName, &l.UserID); err != nil {
		return nil, fmt.Errorf("scan user login: %w", err)
	}
	return &l, nil
}

// UserLoginsRepo reads the UserLogins table. Resolving a login to its user
// goes through UsersRepo.FindByLogin so tenant links are filled.
type UserLoginsRepo struct {
	conn
	q userLoginsSQL
}

func NewUserLoginsRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*UserLoginsRepo, error) {
	c, err := open(ctx, f, log)
	if err != nil {
		return nil, err
	}
	return &UserLoginsRepo{conn: c, q: newUserLoginsSQL(c.ids)}, nil
}

func (r *UserLoginsRepo) GetLogins(ctx context.Context, userID uuid.UUID) ([]entity.UserLogin, error) {
	logins, err := query(ctx, r.db, r.q.byUserQ, map[string]any{"UserId": userID}, scanUserLogin)
	if err != nil {
		return nil, fmt.Errorf("query user logins: %w", err)
	}
	out := make([]entity.UserLogin, len(logins))
	for i, l := range logins {
		out[i] = *l
	}
	return out, nil
}

// FindUserLogin returns the login row for the provider key, or nil.
func (r *UserLoginsRepo) FindUserLogin(ctx context.Context, loginProvider, providerKey string) (*entity.UserLogin, error) {
	return queryOne(ctx, r.db, r.q.byKeyQ, map[string]any{"LoginProvider": loginProvider, "ProviderKey": providerKey}, scanUserLogin)
}

// FindUserLoginForUser is FindUserLogin restricted to one user.
func (r *UserLoginsRepo) FindUserLoginForUser(ctx context.Context, userID uuid.UUID, loginProvider, providerKey string) (*entity.UserLogin, error) {
	return queryOne(ctx, r.db, r.q.byUserKeyQ, map[string]any{"UserId": userID, "LoginProvider": loginProvider, "ProviderKey": providerKey}, scanUserLogin)
}
