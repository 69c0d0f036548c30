package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
)

var accountColumns = []string{
	"Id", "Email", "Region", "City", "StreetAddress", "AddressDetails", "PostalCode", "PhoneNumber", "State", "CreatedAt",
}

// AccountUsersRepo is the Users accessor for single-tenant deployments where
// every user belongs to a row of the Accounts table.
type AccountUsersRepo struct {
	*UsersRepo
	insertAccountQ, updateAccountQ, accountByIDQ string
}

func NewAccountUsersRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*AccountUsersRepo, error) {
	users, err := newUsersRepo(ctx, f, log, accountTenant)
	if err != nil {
		return nil, err
	}
	ids := users.ids
	t := ids.TableName("Accounts")
	col := ids.ColumnName

	values := make([]string, len(accountColumns))
	sets := make([]string, 0, len(accountColumns))
	for i, n := range accountColumns {
		values[i] = ":" + n
		if n == "Id" {
			values[i] = ids.Placeholder(n)
			continue
		}
		if n != "CreatedAt" {
			sets = append(sets, col(n)+" = :"+n)
		}
	}
	r := &AccountUsersRepo{
		UsersRepo: users,
		insertAccountQ: fmt.Sprintf("insert into %s (%s) values (%s)",
			t, ids.Columns("", accountColumns...), strings.Join(values, ", ")),
		updateAccountQ: fmt.Sprintf("update %s set %s where %s = %s",
			t, strings.Join(sets, ", "), col("Id"), ids.Placeholder("Id")),
		accountByIDQ: ids.SelectOne(ids.Columns("", accountColumns...), "from "+t+" where "+col("Id")+" = "+ids.Placeholder("Id")),
	}
	users.hydrate = r.hydrateAccounts
	return r, nil
}

func accountParams(a *entity.Account) map[string]any {
	return map[string]any{
		"Id":             a.ID,
		"Email":          a.Email,
		"Region":         a.Region,
		"City":           a.City,
		"StreetAddress":  a.StreetAddress,
		"AddressDetails": a.AddressDetails,
		"PostalCode":     a.PostalCode,
		"PhoneNumber":    a.PhoneNumber,
		"State":          a.State,
		"CreatedAt":      a.CreatedAt,
	}
}

func scanAccount(s scanner) (*entity.Account, error) {
	var a entity.Account
	if err := s.Scan(&a.ID, &a.Email, &a.Region, &a.City, &a.StreetAddress, &a.AddressDetails,
		&a.PostalCode, &a.PhoneNumber, &a.State, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// Create inserts the user's account and then the user in one transaction.
// A user without an Account gets a new one carrying the user's email.
func (r *AccountUsersRepo) Create(ctx context.Context, u *entity.User) error {
	if u.Account == nil {
		email := ""
		if u.Email != nil {
			email = *u.Email
		}
		u.Account = entity.NewAccount(email)
	}
	u.AccountID = &u.Account.ID

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := execOne(ctx, tx, r.insertAccountQ, accountParams(u.Account)); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return r.create(ctx, tx, u)
	})
	if err != nil {
		return fmt.Errorf("account %s: %w", u.Account.ID, err)
	}
	return nil
}

// GetAccount returns nil, nil for an unknown account.
func (r *AccountUsersRepo) GetAccount(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return queryOne(ctx, r.db, r.accountByIDQ, map[string]any{"Id": id}, scanAccount)
}

func (r *AccountUsersRepo) UpdateAccount(ctx context.Context, a *entity.Account) error {
	if err := execOne(ctx, r.db, r.updateAccountQ, accountParams(a)); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// GetUsersForAccount returns every user belonging to the account.
func (r *AccountUsersRepo) GetUsersForAccount(ctx context.Context, accountID uuid.UUID) ([]*entity.User, error) {
	return r.find(ctx, r.forTenantQ, map[string]any{string(accountTenant): accountID})
}

func (r *AccountUsersRepo) hydrateAccounts(ctx context.Context, users []*entity.User) error {
	seen := map[uuid.UUID]*entity.Account{}
	for _, u := range users {
		if u.AccountID == nil {
			continue
		}
		a, ok := seen[*u.AccountID]
		if !ok {
			var err error
			if a, err = r.GetAccount(ctx, *u.AccountID); err != nil {
				return err
			}
			seen[*u.AccountID] = a
		}
		u.Account = a
	}
	return nil
}
