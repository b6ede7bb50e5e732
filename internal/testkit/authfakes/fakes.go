// Package authfakes provides in-memory repositories and collaborators for
// service and HTTP tests.
package authfakes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"learnhub-auth/internal/core/cache"
	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/oauth"
)

// Store backs every repository with maps under one mutex. Uniqueness is
// enforced the way the SQL schema does it.
type Store struct {
	mu          sync.Mutex
	users       map[string]domain.User
	userRoles   map[[2]string]domain.UserRole
	roles       map[string]domain.Role
	perms       map[string]domain.Permission
	rolePerms   map[[2]string]domain.RolePermission
	conns       map[string]domain.OAuthConnection
	tokens      map[string]domain.RefreshToken

	// FailReplace makes ReplacePermissions fail as if the connection dropped.
	FailReplace bool
}

func NewStore() *Store {
	return &Store{
		users:     map[string]domain.User{},
		userRoles: map[[2]string]domain.UserRole{},
		roles:     map[string]domain.Role{},
		perms:     map[string]domain.Permission{},
		rolePerms: map[[2]string]domain.RolePermission{},
		conns:     map[string]domain.OAuthConnection{},
		tokens:    map[string]domain.RefreshToken{},
	}
}

func (m *Store) Users() domain.UserRepository                  { return memUsers{m} }
func (m *Store) Roles() domain.RoleRepository                  { return memRoles{m} }
func (m *Store) Permissions() domain.PermissionRepository      { return memPerms{m} }
func (m *Store) Connections() domain.OAuthConnectionRepository { return memConns{m} }
func (m *Store) Tokens() domain.RefreshTokenRepository         { return memTokens{m} }

// DeleteUser drops the user row only, leaving dangling references the way a
// manual delete in the database would.
func (m *Store) DeleteUser(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

var errDup = domain.Wrap(domain.ErrDuplicate, errors.New("unique violation"))

type Tx struct{}

func (Tx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// users

type memUsers struct{ *Store }

func (m memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email {
			return errDup
		}
	}
	if _, ok := m.users[u.ID]; ok {
		return errDup
	}
	c := *u
	c.Roles = nil
	m.users[u.ID] = c
	return nil
}

func (m memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m memUsers) LockByID(ctx context.Context, id string) (*domain.User, error) {
	return m.FindByID(ctx, id)
}

func (m memUsers) List(_ context.Context, offset, limit int) ([]domain.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.User{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m memUsers) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	c.Roles = nil
	m.users[u.ID] = c
	return nil
}

func (m memUsers) RoleNames(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := []string{}
	for k := range m.userRoles {
		if k[0] == userID {
			names = append(names, m.roles[k[1]].Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m memUsers) HasRole(_ context.Context, userID, roleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.userRoles[[2]string{userID, roleID}]
	return ok, nil
}

func (m memUsers) AddRole(_ context.Context, a *domain.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{a.UserID, a.RoleID}
	if _, ok := m.userRoles[k]; ok {
		return errDup
	}
	m.userRoles[k] = *a
	return nil
}

func (m memUsers) RemoveRole(_ context.Context, userID, roleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{userID, roleID}
	_, ok := m.userRoles[k]
	delete(m.userRoles, k)
	return ok, nil
}

// roles

type memRoles struct{ *Store }

func (m memRoles) Create(_ context.Context, r *domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.roles {
		if x.Name == r.Name {
			return errDup
		}
	}
	m.roles[r.ID] = *r
	return nil
}

func (m memRoles) FindByID(_ context.Context, id string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m memRoles) FindByName(_ context.Context, name string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, nil
}

func (m memRoles) List(_ context.Context) ([]domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memRoles) Update(_ context.Context, r *domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.roles {
		if x.Name == r.Name && x.ID != r.ID {
			return errDup
		}
	}
	m.roles[r.ID] = *r
	return nil
}

func (m memRoles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := map[string]int{}
	for k := range m.userRoles {
		held[k[0]]++
	}
	for k := range m.userRoles {
		if k[1] == id && held[k[0]] == 1 {
			return domain.ErrRoleInUse
		}
	}
	delete(m.roles, id)
	for k := range m.userRoles {
		if k[1] == id {
			delete(m.userRoles, k)
		}
	}
	for k := range m.rolePerms {
		if k[0] == id {
			delete(m.rolePerms, k)
		}
	}
	return nil
}

func (m memRoles) HasPermission(_ context.Context, roleID, permissionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rolePerms[[2]string{roleID, permissionID}]
	return ok, nil
}

func (m memRoles) AddPermission(_ context.Context, rp *domain.RolePermission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{rp.RoleID, rp.PermissionID}
	if _, ok := m.rolePerms[k]; ok {
		return errDup
	}
	m.rolePerms[k] = *rp
	return nil
}

func (m memRoles) RemovePermission(_ context.Context, roleID, permissionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{roleID, permissionID}
	_, ok := m.rolePerms[k]
	delete(m.rolePerms, k)
	return ok, nil
}

func (m memRoles) ReplacePermissions(_ context.Context, roleID string, ids []string, by string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReplace {
		return errors.New("connection reset")
	}
	next := map[[2]string]domain.RolePermission{}
	for k, v := range m.rolePerms {
		if k[0] != roleID {
			next[k] = v
		}
	}
	for _, id := range ids {
		next[[2]string{roleID, id}] = domain.RolePermission{RoleID: roleID, PermissionID: id, AssignedBy: by, AssignedAt: at}
	}
	m.rolePerms = next
	return nil
}

func (m memRoles) Permissions(_ context.Context, roleID string) ([]domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Permission
	for k := range m.rolePerms {
		if k[0] == roleID {
			out = append(out, m.perms[k[1]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// permissions

type memPerms struct{ *Store }

func (m memPerms) Create(_ context.Context, p *domain.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.perms {
		if x.Name == p.Name {
			return errDup
		}
	}
	m.perms[p.ID] = *p
	return nil
}

func (m memPerms) FindByName(_ context.Context, name string) (*domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.perms {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (m memPerms) FindByIDs(_ context.Context, ids []string) ([]domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Permission
	for _, id := range ids {
		if p, ok := m.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memPerms) List(_ context.Context) ([]domain.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memPerms) held(userID string) map[string]struct{} {
	held := map[string]struct{}{}
	for ur := range m.userRoles {
		if ur[0] != userID {
			continue
		}
		for rp := range m.rolePerms {
			if rp[0] == ur[1] {
				held[m.perms[rp[1]].Name] = struct{}{}
			}
		}
	}
	return held
}

func (m memPerms) GrantedTo(_ context.Context, userID string, names []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.held(userID)
	out := []string{}
	for _, n := range names {
		if _, ok := held[n]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m memPerms) ForUser(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for n := range m.held(userID) {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// oauth connections

type memConns struct{ *Store }

func (m memConns) Create(_ context.Context, c *domain.OAuthConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.conns {
		if x.Provider == c.Provider && (x.ProviderUserID == c.ProviderUserID || x.UserID == c.UserID) {
			return errDup
		}
	}
	m.conns[c.ID] = *c
	return nil
}

func (m memConns) find(match func(domain.OAuthConnection) bool) *domain.OAuthConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		if match(c) {
			return &c
		}
	}
	return nil
}

func (m memConns) FindByProviderUserID(_ context.Context, p domain.Provider, puid string) (*domain.OAuthConnection, error) {
	return m.find(func(c domain.OAuthConnection) bool { return c.Provider == p && c.ProviderUserID == puid }), nil
}

func (m memConns) FindByUserAndProvider(_ context.Context, userID string, p domain.Provider) (*domain.OAuthConnection, error) {
	return m.find(func(c domain.OAuthConnection) bool { return c.UserID == userID && c.Provider == p }), nil
}

func (m memConns) ListByUser(_ context.Context, userID string) ([]domain.OAuthConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OAuthConnection
	for _, c := range m.conns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

func (m memConns) CountByUser(ctx context.Context, userID string) (int64, error) {
	l, _ := m.ListByUser(ctx, userID)
	return int64(len(l)), nil
}

func (m memConns) Update(_ context.Context, c *domain.OAuthConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c.ID] = *c
	return nil
}

func (m memConns) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
	return nil
}

// refresh tokens

type memTokens struct{ *Store }

func (m memTokens) Create(_ context.Context, t *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[t.TokenHash]; ok {
		return errDup
	}
	m.tokens[t.TokenHash] = *t
	return nil
}

func (m memTokens) FindByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m memTokens) Rotate(_ context.Context, oldID string, now time.Time, next *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, t := range m.tokens {
		if t.ID != oldID {
			continue
		}
		if !t.Active(now) {
			return domain.ErrRefreshTokenRevoked
		}
		t.Revoked, t.RevokedAt, t.ReplacedBy = true, &now, next.ID
		m.tokens[h] = t
		m.tokens[next.TokenHash] = *next
		return nil
	}
	return domain.ErrRefreshTokenRevoked
}

func (m memTokens) Revoke(_ context.Context, hash string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok || !t.Active(now) {
		return false, nil
	}
	t.Revoked, t.RevokedAt = true, &now
	m.tokens[hash] = t
	return true, nil
}

func (m memTokens) RevokeAllForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for h, t := range m.tokens {
		if t.UserID == userID && t.Active(now) {
			t.Revoked, t.RevokedAt = true, &now
			m.tokens[h] = t
			n++
		}
	}
	return n, nil
}

func (m memTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for h, t := range m.tokens {
		if !before.Before(t.ExpiresAt) {
			delete(m.tokens, h)
			n++
		}
	}
	return n, nil
}

func (m *Store) ActiveTokens(userID string, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID && t.Active(now) {
			n++
		}
	}
	return n
}

// collaborators

// PlainHasher keeps tests fast; it is not a password hash.
type PlainHasher struct{}

func (PlainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (PlainHasher) Compare(p, h string) bool      { return h == "h:"+p }

type Issuer struct{}

func (Issuer) IssueAccessToken(userID, email string, roles []string) (string, error) {
	return fmt.Sprintf("at.%s.%s", userID, strings.Join(roles, ",")), nil
}
func (Issuer) AccessTokenExpiry() time.Duration  { return 15 * time.Minute }
func (Issuer) RefreshTokenExpiry() time.Duration { return 7 * 24 * time.Hour }

type OAuth struct {
	mu        sync.Mutex
	enabled   map[domain.Provider]bool
	codes     map[string]*oauth.ExchangeResult
	revoked   []string
	refreshed []string
	RevokeErr error
	// RefreshErr fails RefreshAccessToken when set.
	RefreshErr error
}

func NewOAuth() *OAuth {
	return &OAuth{
		enabled: map[domain.Provider]bool{domain.ProviderGoogle: true, domain.ProviderFacebook: true},
		codes:   map[string]*oauth.ExchangeResult{},
	}
}

func (f *OAuth) IsProviderEnabled(p domain.Provider) bool { return f.enabled[p] }

func (f *OAuth) AuthorizationURL(p domain.Provider, state, verifier string) (string, error) {
	return fmt.Sprintf("https://%s.test/auth?state=%s", p, state), nil
}

func (f *OAuth) ExchangeCodeForTokens(_ context.Context, p domain.Provider, code, _ string) (*oauth.ExchangeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.codes[string(p)+":"+code]
	if !ok {
		return nil, domain.Wrap(domain.ErrOAuthExchangeFailed, errors.New("invalid_grant"))
	}
	return res, nil
}

// RefreshAccessToken answers "fresh-<refresh token>" valid for an hour.
func (f *OAuth) RefreshAccessToken(_ context.Context, p domain.Provider, refreshToken string) (*oauth.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, string(p)+":"+refreshToken)
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	exp := time.Now().Add(time.Hour)
	return &oauth.Tokens{AccessToken: "fresh-" + refreshToken, ExpiresAt: &exp}, nil
}

func (f *OAuth) Refreshed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshed...)
}

func (f *OAuth) RevokeToken(_ context.Context, p domain.Provider, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, string(p)+":"+token)
	return f.RevokeErr
}

func (f *OAuth) Revoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

// Code registers what exchanging code with p yields.
func (f *OAuth) Code(p domain.Provider, code, subject, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[string(p)+":"+code] = &oauth.ExchangeResult{
		Profile: oauth.Profile{ProviderUserID: subject, Email: email, Name: "OAuth Person"},
		Tokens:  oauth.Tokens{AccessToken: "up-" + code, RefreshToken: "upr-" + code},
	}
}

type States struct {
	mu sync.Mutex
	m  map[string]cache.OAuthState
}

func (s *States) Save(_ context.Context, state string, v cache.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]cache.OAuthState{}
	}
	s.m[state] = v
	return nil
}

func (s *States) Consume(_ context.Context, state string) (*cache.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[state]
	if !ok {
		return nil, cache.ErrMiss
	}
	delete(s.m, state)
	return &v, nil
}
