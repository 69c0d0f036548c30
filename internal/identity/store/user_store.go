package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/utilities"
)

// UserAccessors are the table accessors a UserStore works through. The
// store closes them when it is closed.
type UserAccessors struct {
	Users     UsersAccessor
	Roles     RolesAccessor
	Claims    UserClaimsAccessor
	Logins    UserLoginsAccessor
	Tokens    UserTokensAccessor
	UserRoles UserRolesAccessor
}

// userChanges buffers a user's child collections. Each collection is read
// from the database on first mutation and written back by Update.
type userChanges struct {
	claims       []entity.UserClaim
	claimsLoaded bool
	logins       []entity.UserLogin
	loginsLoaded bool
	tokens       []entity.UserToken
	tokensLoaded bool
	roles        []*entity.Role
	rolesLoaded  bool
	dirty        bool
}

// emptied names the loaded collections that removals left empty. Update only
// replaces non-empty collections, so their stored rows stay as they are.
func (ch *userChanges) emptied() []string {
	if !ch.dirty {
		return nil
	}
	var names []string
	if ch.claimsLoaded && len(ch.claims) == 0 {
		names = append(names, "claims")
	}
	if ch.rolesLoaded && len(ch.roles) == 0 {
		names = append(names, "roles")
	}
	if ch.loginsLoaded && len(ch.logins) == 0 {
		names = append(names, "logins")
	}
	if ch.tokensLoaded && len(ch.tokens) == 0 {
		names = append(names, "tokens")
	}
	return names
}

// UserStore adapts the identity tables to the user store contract.
//
// Claim, login, token and role mutations are only buffered; they reach the
// database when Update is called for the same user. A UserStore is not safe
// for concurrent use.
type UserStore struct {
	a       UserAccessors
	log     *zap.SugaredLogger
	pending map[uuid.UUID]*userChanges
	closed  bool
}

func NewUserStore(a UserAccessors, log *zap.SugaredLogger) *UserStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &UserStore{a: a, log: log, pending: map[uuid.UUID]*userChanges{}}
}

func (s *UserStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrDisposed
	}
	return nil
}

func (s *UserStore) checkUser(ctx context.Context, u *entity.User) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if u == nil {
		return invalid("user is nil")
	}
	return nil
}

func (s *UserStore) Create(ctx context.Context, u *entity.User) (Result, error) {
	if err := s.checkUser(ctx, u); err != nil {
		return Result{}, err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.ConcurrencyStamp == "" {
		u.ConcurrencyStamp = utilities.NewKSUID()
	}
	if u.SecurityStamp == "" {
		u.SecurityStamp = utilities.NewKSUID()
	}
	if err := s.a.Users.Create(ctx, u); err != nil {
		s.log.Warnw("create user", "user", u.UserName, "err", err)
		return failure(err, fmt.Sprintf("User '%s' could not be created.", u.UserName)), nil
	}
	return Success, nil
}

func (s *UserStore) Delete(ctx context.Context, u *entity.User) (Result, error) {
	if err := s.checkUser(ctx, u); err != nil {
		return Result{}, err
	}
	delete(s.pending, u.ID)
	if err := s.a.Users.Delete(ctx, u.ID); err != nil {
		s.log.Warnw("delete user", "user", u.ID, "err", err)
		return failure(err, fmt.Sprintf("User '%s' could not be deleted.", u.UserName)), nil
	}
	return Success, nil
}

// Update writes u together with every buffered collection for it, and
// regenerates the concurrency stamp.
func (s *UserStore) Update(ctx context.Context, u *entity.User) (Result, error) {
	if err := s.checkUser(ctx, u); err != nil {
		return Result{}, err
	}
	prevStamp := u.ConcurrencyStamp
	u.ConcurrencyStamp = utilities.NewKSUID()

	var (
		claims []entity.UserClaim
		roles  []entity.UserRole
		logins []entity.UserLogin
		tokens []entity.UserToken
	)
	if ch := s.pending[u.ID]; ch != nil {
		claims, logins, tokens = ch.claims, ch.logins, ch.tokens
		for _, r := range ch.roles {
			roles = append(roles, entity.UserRole{UserID: u.ID, RoleID: r.ID})
		}
		for _, name := range ch.emptied() {
			s.log.Warnw("emptied collection is not written", "user", u.ID.String(), "collection", name)
		}
	}
	if err := s.a.Users.Update(ctx, u, claims, roles, logins, tokens); err != nil {
		u.ConcurrencyStamp = prevStamp
		s.log.Warnw("update user", "user", u.ID, "err", err)
		return failure(err, fmt.Sprintf("User '%s' could not be updated.", u.UserName)), nil
	}
	delete(s.pending, u.ID)
	return Success, nil
}

// FindByID returns nil, nil when no user has the id.
func (s *UserStore) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.a.Users.FindByID(ctx, uid)
}

func (s *UserStore) FindByName(ctx context.Context, normalizedUserName string) (*entity.User, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if normalizedUserName == "" {
		return nil, invalid("user name is empty")
	}
	return s.a.Users.FindByName(ctx, normalizedUserName)
}

func (s *UserStore) FindByEmail(ctx context.Context, normalizedEmail string) (*entity.User, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if normalizedEmail == "" {
		return nil, invalid("email is empty")
	}
	return s.a.Users.FindByEmail(ctx, normalizedEmail)
}

func (s *UserStore) changes(u *entity.User) *userChanges {
	ch := s.pending[u.ID]
	if ch == nil {
		ch = &userChanges{}
		s.pending[u.ID] = ch
	}
	return ch
}

func (s *UserStore) loadClaims(ctx context.Context, u *entity.User) (*userChanges, error) {
	ch := s.changes(u)
	if !ch.claimsLoaded {
		claims, err := s.a.Claims.GetClaims(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		ch.claims, ch.claimsLoaded = claims, true
	}
	return ch, nil
}

func (s *UserStore) loadLogins(ctx context.Context, u *entity.User) (*userChanges, error) {
	ch := s.changes(u)
	if !ch.loginsLoaded {
		logins, err := s.a.Logins.GetLogins(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		ch.logins, ch.loginsLoaded = logins, true
	}
	return ch, nil
}

func (s *UserStore) loadTokens(ctx context.Context, u *entity.User) (*userChanges, error) {
	ch := s.changes(u)
	if !ch.tokensLoaded {
		tokens, err := s.a.Tokens.GetTokens(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		ch.tokens, ch.tokensLoaded = tokens, true
	}
	return ch, nil
}

func (s *UserStore) loadRoles(ctx context.Context, u *entity.User) (*userChanges, error) {
	ch := s.changes(u)
	if !ch.rolesLoaded {
		roles, err := s.a.UserRoles.GetRoles(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		ch.roles, ch.rolesLoaded = roles, true
	}
	return ch, nil
}

// GetClaims returns the user's claims including buffered changes.
func (s *UserStore) GetClaims(ctx context.Context, u *entity.User) ([]entity.Claim, error) {
	if err := s.checkUser(ctx, u); err != nil {
		return nil, err
	}
	var claims []entity.UserClaim
	if ch := s.pending[u.ID]; ch != nil && ch.claimsLoaded {
		claims = ch.claims
	} else {
		var err error
		if claims, err = s.a.Claims.GetClaims(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	out := make([]entity.Claim, len(claims))
	for i, c := range claims {
		out[i] = c.Claim()
	}
	return out, nil
}

func (s *UserStore) AddClaims(ctx context.Context, u *entity.User, claims []entity.Claim) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	if claims == nil {
		return invalid("claims is nil")
	}
	ch, err := s.loadClaims(ctx, u)
	if err != nil {
		return err
	}
	for _, c := range claims {
		ch.claims = append(ch.claims, entity.UserClaim{UserID: u.ID, ClaimType: c.Type, ClaimValue: c.Value})
	}
	ch.dirty = true
	return nil
}

// ReplaceClaim swaps every occurrence of claim for newClaim.
func (s *UserStore) ReplaceClaim(ctx context.Context, u *entity.User, claim, newClaim entity.Claim) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	if claim.Type == "" || newClaim.Type == "" {
		return invalid("claim type is empty")
	}
	ch, err := s.loadClaims(ctx, u)
	if err != nil {
		return err
	}
	for i, c := range ch.claims {
		if c.Claim() == claim {
			ch.claims[i].ClaimType, ch.claims[i].ClaimValue = newClaim.Type, newClaim.Value
			ch.dirty = true
		}
	}
	return nil
}

func (s *UserStore) RemoveClaims(ctx context.Context, u *entity.User, claims []entity.Claim) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	if claims == nil {
		return invalid("claims is nil")
	}
	ch, err := s.loadClaims(ctx, u)
	if err != nil {
		return err
	}
	drop := make(map[entity.Claim]bool, len(claims))
	for _, c := range claims {
		drop[c] = true
	}
	kept := ch.claims[:0]
	for _, c := range ch.claims {
		if !drop[c.Claim()] {
			kept = append(kept, c)
		}
	}
	ch.claims, ch.dirty = kept, true
	return nil
}

func (s *UserStore) GetUsersForClaim(ctx context.Context, claim entity.Claim) ([]*entity.User, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if claim.Type == "" {
		return nil, invalid("claim type is empty")
	}
	return s.a.Users.GetUsersForClaim(ctx, claim)
}

func (s *UserStore) AddLogin(ctx context.Context, u *entity.User, login entity.LoginInfo) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	if login.LoginProvider == "" || login.ProviderKey == "" {
		return invalid("login provider and key are required")
	}
	ch, err := s.loadLogins(ctx, u)
	if err != nil {
		return err
	}
	ch.logins = append(ch.logins, entity.UserLogin{LoginInfo: login, UserID: u.ID})
	ch.dirty = true
	return nil
}

func (s *UserStore) RemoveLogin(ctx context.Context, u *entity.User, loginProvider, providerKey string) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	ch, err := s.loadLogins(ctx, u)
	if err != nil {
		return err
	}
	kept := ch.logins[:0]
	for _, l := range ch.logins {
		if l.LoginProvider != loginProvider || l.ProviderKey != providerKey {
			kept = append(kept, l)
		}
	}
	ch.logins, ch.dirty = kept, true
	return nil
}

func (s *UserStore) GetLogins(ctx context.Context, u *entity.User) ([]entity.LoginInfo, error) {
	if err := s.checkUser(ctx, u); err != nil {
		return nil, err
	}
	var logins []entity.UserLogin
	if ch := s.pending[u.ID]; ch != nil && ch.loginsLoaded {
		logins = ch.logins
	} else {
		var err error
		if logins, err = s.a.Logins.GetLogins(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	out := make([]entity.LoginInfo, len(logins))
	for i, l := range logins {
		out[i] = l.LoginInfo
	}
	return out, nil
}

// FindByLogin returns the user owning the external login, or nil.
func (s *UserStore) FindByLogin(ctx context.Context, loginProvider, providerKey string) (*entity.User, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if loginProvider == "" || providerKey == "" {
		return nil, invalid("login provider and key are required")
	}
	return s.a.Users.FindByLogin(ctx, loginProvider, providerKey)
}

// SetToken adds or overwrites the token stored under provider and name.
func (s *UserStore) SetToken(ctx context.Context, u *entity.User, loginProvider, name, value string) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	if loginProvider == "" || name == "" {
		return invalid("token provider and name are required")
	}
	ch, err := s.loadTokens(ctx, u)
	if err != nil {
		return err
	}
	ch.dirty = true
	for i, t := range ch.tokens {
		if t.LoginProvider == loginProvider && t.Name == name {
			ch.tokens[i].Value = value
			return nil
		}
	}
	ch.tokens = append(ch.tokens, entity.UserToken{UserID: u.ID, LoginProvider: loginProvider, Name: name, Value: value})
	return nil
}

func (s *UserStore) RemoveToken(ctx context.Context, u *entity.User, loginProvider, name string) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	ch, err := s.loadTokens(ctx, u)
	if err != nil {
		return err
	}
	kept := ch.tokens[:0]
	for _, t := range ch.tokens {
		if t.LoginProvider != loginProvider || t.Name != name {
			kept = append(kept, t)
		}
	}
	ch.tokens, ch.dirty = kept, true
	return nil
}

// GetToken returns the token value, or "" when the user has none.
func (s *UserStore) GetToken(ctx context.Context, u *entity.User, loginProvider, name string) (string, error) {
	if err := s.checkUser(ctx, u); err != nil {
		return "", err
	}
	if ch := s.pending[u.ID]; ch != nil && ch.tokensLoaded {
		for _, t := range ch.tokens {
			if t.LoginProvider == loginProvider && t.Name == name {
				return t.Value, nil
			}
		}
		return "", nil
	}
	t, err := s.a.Tokens.FindToken(ctx, u.ID, loginProvider, name)
	if err != nil || t == nil {
		return "", err
	}
	return t.Value, nil
}

// AddToRole buffers membership of the role with the given normalized name.
func (s *UserStore) AddToRole(ctx context.Context, u *entity.User, normalizedRoleName string) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	if normalizedRoleName == "" {
		return invalid("role name is empty")
	}
	role, err := s.a.Roles.FindByName(ctx, normalizedRoleName)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, normalizedRoleName)
	}
	ch, err := s.loadRoles(ctx, u)
	if err != nil {
		return err
	}
	for _, r := range ch.roles {
		if r.ID == role.ID {
			return nil
		}
	}
	ch.roles = append(ch.roles, role)
	ch.dirty = true
	return nil
}

func (s *UserStore) RemoveFromRole(ctx context.Context, u *entity.User, normalizedRoleName string) error {
	if err := s.checkUser(ctx, u); err != nil {
		return err
	}
	if normalizedRoleName == "" {
		return invalid("role name is empty")
	}
	ch, err := s.loadRoles(ctx, u)
	if err != nil {
		return err
	}
	kept := ch.roles[:0]
	for _, r := range ch.roles {
		if r.NormalizedName != normalizedRoleName {
			kept = append(kept, r)
		}
	}
	ch.roles, ch.dirty = kept, true
	return nil
}

// GetRoles returns the names of the user's roles including buffered changes.
func (s *UserStore) GetRoles(ctx context.Context, u *entity.User) ([]string, error) {
	if err := s.checkUser(ctx, u); err != nil {
		return nil, err
	}
	var roles []*entity.Role
	if ch := s.pending[u.ID]; ch != nil && ch.rolesLoaded {
		roles = ch.roles
	} else {
		var err error
		if roles, err = s.a.UserRoles.GetRoles(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return names, nil
}

func (s *UserStore) IsInRole(ctx context.Context, u *entity.User, normalizedRoleName string) (bool, error) {
	if err := s.checkUser(ctx, u); err != nil {
		return false, err
	}
	if normalizedRoleName == "" {
		return false, invalid("role name is empty")
	}
	var roles []*entity.Role
	if ch := s.pending[u.ID]; ch != nil && ch.rolesLoaded {
		roles = ch.roles
	} else {
		var err error
		if roles, err = s.a.UserRoles.GetRoles(ctx, u.ID); err != nil {
			return false, err
		}
	}
	for _, r := range roles {
		if r.NormalizedName == normalizedRoleName {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserStore) GetUsersInRole(ctx context.Context, normalizedRoleName string) ([]*entity.User, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if normalizedRoleName == "" {
		return nil, invalid("role name is empty")
	}
	return s.a.Users.GetUsersInRole(ctx, normalizedRoleName)
}

// Close releases every accessor. Buffered changes that were never passed to
// Update are dropped with a warning.
func (s *UserStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.pending {
		if ch.dirty {
			s.log.Warnw("closing user store with unsaved changes", "user", id.String())
		}
	}
	s.pending = nil
	return closeAll(s.a.Users, s.a.Roles, s.a.Claims, s.a.Logins, s.a.Tokens, s.a.UserRoles)
}
