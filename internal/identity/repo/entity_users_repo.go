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

var entityColumns = []string{
	"Id", "Name", "CompanyName", "TaxCode", "RegistrationNumber", "Email", "Country", "Region",
	"City", "StreetAddress", "PostalCode", "PhoneNumber", "State", "CreatedAt",
}

// EntityUsersRepo is the Users accessor for multi-tenant deployments where
// users belong to an organisation stored in the Entities table.
type EntityUsersRepo struct {
	*UsersRepo
	insertEntityQ, updateEntityQ, entityByIDQ string
}

func NewEntityUsersRepo(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (*EntityUsersRepo, error) {
	users, err := newUsersRepo(ctx, f, log, entityTenant)
	if err != nil {
		return nil, err
	}
	ids := users.ids
	t := ids.TableName("Entities")
	col := ids.ColumnName

	values := make([]string, len(entityColumns))
	sets := make([]string, 0, len(entityColumns))
	for i, n := range entityColumns {
		values[i] = ":" + n
		if n == "Id" {
			values[i] = ids.Placeholder(n)
			continue
		}
		if n != "CreatedAt" {
			sets = append(sets, col(n)+" = :"+n)
		}
	}
	r := &EntityUsersRepo{
		UsersRepo: users,
		insertEntityQ: fmt.Sprintf("insert into %s (%s) values (%s)",
			t, ids.Columns("", entityColumns...), strings.Join(values, ", ")),
		updateEntityQ: fmt.Sprintf("update %s set %s where %s = %s",
			t, strings.Join(sets, ", "), col("Id"), ids.Placeholder("Id")),
		entityByIDQ: ids.SelectOne(ids.Columns("", entityColumns...), "from "+t+" where "+col("Id")+" = "+ids.Placeholder("Id")),
	}
	users.hydrate = r.hydrateEntities
	return r, nil
}

func entityParams(e *entity.Entity) map[string]any {
	return map[string]any{
		"Id":                 e.ID,
		"Name":               e.Name,
		"CompanyName":        e.CompanyName,
		"TaxCode":            e.TaxCode,
		"RegistrationNumber": e.RegistrationNumber,
		"Email":              e.Email,
		"Country":            e.Country,
		"Region":             e.Region,
		"City":               e.City,
		"StreetAddress":      e.StreetAddress,
		"PostalCode":         e.PostalCode,
		"PhoneNumber":        e.PhoneNumber,
		"State":              e.State,
		"CreatedAt":          e.CreatedAt,
	}
}

func scanEntity(s scanner) (*entity.Entity, error) {
	var e entity.Entity
	if err := s.Scan(&e.ID, &e.Name, &e.CompanyName, &e.TaxCode, &e.RegistrationNumber, &e.Email,
		&e.Country, &e.Region, &e.City, &e.StreetAddress, &e.PostalCode, &e.PhoneNumber,
		&e.State, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	return &e, nil
}

// Create inserts the user's entity and then the user in one transaction.
// Users joining an existing entity set EntityID and leave Entity nil.
func (r *EntityUsersRepo) Create(ctx context.Context, u *entity.User) error {
	if u.Entity == nil && u.EntityID != nil {
		return r.UsersRepo.Create(ctx, u)
	}
	if u.Entity == nil {
		u.Entity = entity.NewEntity(u.UserName)
	}
	u.EntityID = &u.Entity.ID

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := execOne(ctx, tx, r.insertEntityQ, entityParams(u.Entity)); err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
		return r.create(ctx, tx, u)
	})
	if err != nil {
		return fmt.Errorf("entity %s: %w", u.Entity.ID, err)
	}
	return nil
}

// GetEntity returns nil, nil for an unknown entity.
func (r *EntityUsersRepo) GetEntity(ctx context.Context, id uuid.UUID) (*entity.Entity, error) {
	return queryOne(ctx, r.db, r.entityByIDQ, map[string]any{"Id": id}, scanEntity)
}

func (r *EntityUsersRepo) UpdateEntity(ctx context.Context, e *entity.Entity) error {
	if err := execOne(ctx, r.db, r.updateEntityQ, entityParams(e)); err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	return nil
}

func (r *EntityUsersRepo) GetUsersForEntity(ctx context.Context, entityID uuid.UUID) ([]*entity.User, error) {
	return r.find(ctx, r.forTenantQ, map[string]any{string(entityTenant): entityID})
}

func (r *EntityUsersRepo) hydrateEntities(ctx context.Context, users []*entity.User) error {
	seen := map[uuid.UUID]*entity.Entity{}
	for _, u := range users {
		if u.EntityID == nil {
			continue
		}
		e, ok := seen[*u.EntityID]
		if !ok {
			var err error
			if e, err = r.GetEntity(ctx, *u.EntityID); err != nil {
				return err
			}
			seen[*u.EntityID] = e
		}
		u.Entity = e
	}
	return nil
}
