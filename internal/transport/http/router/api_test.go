package router

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/transport/http/handler"
)

func TestRegister(t *testing.T) {
	h := newHarness(t)

	w := h.do(h.api, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "Ada@Example.com", "password": "Secret123", "fullName": "Ada",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u domain.PublicUser
	env := decode(t, w, &u)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, []string{domain.RoleUser}, u.Roles)
	assert.NotContains(t, w.Body.String(), "password")

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "ada@example.com", "password": "Secret123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user.email_taken", decode(t, w, nil).Key)

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "bob@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user.password_too_short", decode(t, w, nil).Key)
}

func TestErrorsAreLocalised(t *testing.T) {
	h := newHarness(t)
	h.signup("ada@example.com", "Secret123")

	body := map[string]string{"email": "ada@example.com", "password": "Secret123"}
	en := decode(t, h.do(h.api, http.MethodPost, "/api/v1/auth/register", body), nil)
	es := decode(t, h.do(h.api, http.MethodPost, "/api/v1/auth/register", body, lang("es-MX,es;q=0.9")), nil)

	assert.Equal(t, en.Key, es.Key)
	assert.Equal(t, "Email is already registered", en.Msg)
	assert.Equal(t, "El correo ya está registrado", es.Msg)
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	h := newHarness(t)
	h.do(h.api, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "ada@example.com", "password": "Secret123"})

	w := h.do(h.api, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ada@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var s sessionBody
	decode(t, w, &s)
	assert.NotEmpty(t, s.AccessToken)
	assert.Equal(t, "Bearer", s.TokenType)
	assert.Equal(t, int64(900), s.ExpiresIn)
	assert.NotContains(t, w.Body.String(), "refreshToken")

	c := refreshCookie(t, w, h.cfg.Cookie.Name)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, "/api/v1/auth", c.Path)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	h := newHarness(t)
	h.signup("ada@example.com", "Secret123")

	wrong := h.do(h.api, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ada@example.com", "password": "nope-nope"})
	unknown := h.do(h.api, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "who@example.com", "password": "nope-nope"})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "auth.invalid_credentials", decode(t, wrong, nil).Key)
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	h := newHarness(t)
	_, c1 := h.signup("ada@example.com", "Secret123")

	w := h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil, withCookie(c1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	c2 := refreshCookie(t, w, h.cfg.Cookie.Name)
	assert.NotEqual(t, c1.Value, c2.Value)

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil, withCookie(c1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "auth.refresh_token_revoked", decode(t, w, nil).Key)
	assert.Equal(t, -1, refreshCookie(t, w, h.cfg.Cookie.Name).MaxAge)

	// replaying a rotated token kills the whole family
	w = h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil, withCookie(c2))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshAcceptsBodyToken(t *testing.T) {
	h := newHarness(t)
	_, c := h.signup("ada@example.com", "Secret123")

	w := h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refreshToken": c.Value})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "auth.refresh_token_invalid", decode(t, w, nil).Key)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	h := newHarness(t)
	_, c := h.signup("ada@example.com", "Secret123")

	const n = 6
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil, withCookie(c)).Code
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusUnauthorized, code)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, c := h.signup("ada@example.com", "Secret123")

	for i := 0; i < 2; i++ {
		w := h.do(h.api, http.MethodPost, "/api/v1/auth/logout", nil, withCookie(c))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, -1, refreshCookie(t, w, h.cfg.Cookie.Name).MaxAge)
	}
	w := h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil, withCookie(c))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAll(t *testing.T) {
	h := newHarness(t)
	tok, c1 := h.signup("ada@example.com", "Secret123")
	_, c2 := h.login("ada@example.com", "Secret123")

	w := h.do(h.api, http.MethodPost, "/api/v1/auth/logout", map[string]bool{"logoutAll": true})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "logoutAll needs to know who is asking")

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/logout", map[string]bool{"logoutAll": true}, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Revoked int64 `json:"revoked"`
	}
	decode(t, w, &out)
	assert.Equal(t, int64(2), out.Revoked)

	for _, c := range []*http.Cookie{c1, c2} {
		assert.Equal(t, http.StatusUnauthorized, h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil, withCookie(c)).Code)
	}
}

func TestLogoutAllWithoutAccessTokenStillRevokesCookie(t *testing.T) {
	h := newHarness(t)
	_, c := h.signup("ada@example.com", "Secret123")

	w := h.do(h.api, http.MethodPost, "/api/v1/auth/logout", map[string]bool{"logoutAll": true}, withCookie(c))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, -1, refreshCookie(t, w, h.cfg.Cookie.Name).MaxAge)

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil, withCookie(c))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeRequiresValidAccessToken(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.signup("ada@example.com", "Secret123")

	w := h.do(h.api, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "auth.unauthenticated", decode(t, w, nil).Key)

	w = h.do(h.api, http.MethodGet, "/api/v1/auth/me", nil, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)
	var u domain.PublicUser
	decode(t, w, &u)
	assert.Equal(t, "ada@example.com", u.Email)

	h.expire(time.Hour)
	w = h.do(h.api, http.MethodGet, "/api/v1/auth/me", nil, bearer(tok))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "auth.invalid_access_token", decode(t, w, nil).Key)
}

func TestProfileAndPassword(t *testing.T) {
	h := newHarness(t)
	tok, c := h.signup("ada@example.com", "Secret123")

	w := h.do(h.api, http.MethodPut, "/api/v1/auth/me", map[string]string{"fullName": "Ada Lovelace"}, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var u domain.PublicUser
	decode(t, w, &u)
	assert.Equal(t, "Ada Lovelace", u.FullName)

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/password/change",
		map[string]string{"currentPassword": "wrong-one", "newPassword": "Another123"}, bearer(tok))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/password/change",
		map[string]string{"currentPassword": "Secret123", "newPassword": "Another123"}, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, h.do(h.api, http.MethodPost, "/api/v1/auth/refresh", nil, withCookie(c)).Code)
	h.login("ada@example.com", "Another123")

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/password/set", map[string]string{"password": "Third12345"}, bearer(tok))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user.password_already_set", decode(t, w, nil).Key)
}

func TestRoleSurfaceIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	userTok, _ := h.signup("ada@example.com", "Secret123")
	adminTok := h.adminToken()

	w := h.do(h.api, http.MethodPost, "/api/v1/roles", map[string]string{"name": "editor"}, bearer(userTok))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "rbac.not_admin", decode(t, w, nil).Key)

	w = h.do(h.api, http.MethodPost, "/api/v1/roles", map[string]string{"name": "Editor", "description": "edits"}, bearer(adminTok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var role domain.Role
	decode(t, w, &role)
	assert.Equal(t, "editor", role.Name)

	w = h.do(h.api, http.MethodPost, "/api/v1/roles/"+role.ID+"/permissions", map[string]string{"permission": "courses:write"}, bearer(adminTok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.do(h.api, http.MethodPost, "/api/v1/roles/"+role.ID+"/permissions", map[string]string{"permission": "courses:write"}, bearer(adminTok))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "rbac.role_already_has_permission", decode(t, w, nil).Key)

	var perms []domain.Permission
	decode(t, h.do(h.api, http.MethodGet, "/api/v1/roles/"+role.ID+"/permissions", nil, bearer(adminTok)), &perms)
	require.Len(t, perms, 1)
	assert.Equal(t, "courses:write", perms[0].Name)

	w = h.do(h.api, http.MethodDelete, "/api/v1/roles/"+role.ID+"/permissions/courses:write", nil, bearer(adminTok))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(h.api, http.MethodPut, "/api/v1/roles/"+h.roleID(domain.RoleAdmin), map[string]string{"name": "boss"}, bearer(adminTok))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "rbac.system_role_rename", decode(t, w, nil).Key)

	w = h.do(h.api, http.MethodDelete, "/api/v1/roles/"+role.ID, nil, bearer(adminTok))
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(h.api, http.MethodGet, "/api/v1/roles/"+role.ID, nil, bearer(adminTok))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminCheckIsLive(t *testing.T) {
	h := newHarness(t)
	adminTok := h.adminToken()
	root, err := h.store.Users().FindByEmail(context.Background(), "root@example.com")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/api/v1/roles", nil, bearer(adminTok)).Code)

	w := h.do(h.api, http.MethodDelete, "/api/v1/users/"+root.ID+"/roles/admin", nil, bearer(adminTok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the access token still claims admin; the guard asks the store
	w = h.do(h.api, http.MethodGet, "/api/v1/roles", nil, bearer(adminTok))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserRoleAssignment(t *testing.T) {
	h := newHarness(t)
	h.signup("ada@example.com", "Secret123")
	adminTok := h.adminToken()
	ada, _ := h.store.Users().FindByEmail(context.Background(), "ada@example.com")

	w := h.do(h.api, http.MethodDelete, "/api/v1/users/"+ada.ID+"/roles/user", nil, bearer(adminTok))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "rbac.last_role", decode(t, w, nil).Key)

	w = h.do(h.api, http.MethodPost, "/api/v1/users/"+ada.ID+"/roles", map[string]string{"role": "admin"}, bearer(adminTok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.do(h.api, http.MethodPost, "/api/v1/users/"+ada.ID+"/roles", map[string]string{"role": "admin"}, bearer(adminTok))
	assert.Equal(t, http.StatusConflict, w.Code)

	var names []string
	w = h.do(h.api, http.MethodGet, "/api/v1/users/"+ada.ID+"/permissions", nil, bearer(adminTok))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &names)
	assert.Contains(t, names, "roles:write")
}

func TestDeleteRoleKeepsHoldersCovered(t *testing.T) {
	h := newHarness(t)
	h.signup("bob@example.com", "Secret123")
	adminTok := h.adminToken()
	bob, _ := h.store.Users().FindByEmail(context.Background(), "bob@example.com")

	w := h.do(h.api, http.MethodPost, "/api/v1/roles", map[string]string{"name": "editor"}, bearer(adminTok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var editor domain.Role
	decode(t, w, &editor)

	w = h.do(h.api, http.MethodPost, "/api/v1/users/"+bob.ID+"/roles", map[string]string{"role": "editor"}, bearer(adminTok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.do(h.api, http.MethodDelete, "/api/v1/users/"+bob.ID+"/roles/user", nil, bearer(adminTok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(h.api, http.MethodDelete, "/api/v1/roles/"+editor.ID, nil, bearer(adminTok))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "rbac.role_in_use", decode(t, w, nil).Key)

	w = h.do(h.api, http.MethodGet, "/api/v1/roles/"+editor.ID, nil, bearer(adminTok))
	assert.Equal(t, http.StatusOK, w.Code)
	names, err := h.store.Users().RoleNames(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, names)
}

func TestPermissionGrantIsCheckedPerRequest(t *testing.T) {
	h := newHarness(t)
	adminTok := h.adminToken()
	adminRole := h.roleID(domain.RoleAdmin)

	require.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/api/v1/roles", nil, bearer(adminTok)).Code)

	w := h.do(h.api, http.MethodDelete, "/api/v1/roles/"+adminRole+"/permissions/roles:read", nil, bearer(adminTok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(h.api, http.MethodGet, "/api/v1/roles", nil, bearer(adminTok))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "rbac.permission_denied", decode(t, w, nil).Key)
	w = h.do(h.admin, http.MethodGet, "/admin/v1/roles/"+adminRole, nil, bearer(adminTok))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(h.api, http.MethodPost, "/api/v1/roles/"+adminRole+"/permissions", map[string]string{"permission": "roles:read"}, bearer(adminTok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/api/v1/roles", nil, bearer(adminTok)).Code)
}

func TestAdminUserRoutesNeedUserPermissions(t *testing.T) {
	h := newHarness(t)
	adminTok := h.adminToken()
	adminRole := h.roleID(domain.RoleAdmin)

	w := h.do(h.api, http.MethodDelete, "/api/v1/roles/"+adminRole+"/permissions/users:read", nil, bearer(adminTok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(h.admin, http.MethodGet, "/admin/v1/users", nil, bearer(adminTok))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "rbac.permission_denied", decode(t, w, nil).Key)
}

func TestPermissionCatalogReadableWithEitherGrant(t *testing.T) {
	h := newHarness(t)
	adminTok := h.adminToken()
	adminRole := h.roleID(domain.RoleAdmin)

	for _, p := range []string{"permissions:read", "roles:write"} {
		require.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/api/v1/permissions", nil, bearer(adminTok)).Code, p)
		w := h.do(h.api, http.MethodDelete, "/api/v1/roles/"+adminRole+"/permissions/"+p, nil, bearer(adminTok))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := h.do(h.api, http.MethodGet, "/api/v1/permissions", nil, bearer(adminTok))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPermissionCatalog(t *testing.T) {
	h := newHarness(t)
	adminTok := h.adminToken()

	w := h.do(h.api, http.MethodPost, "/api/v1/permissions", map[string]string{"name": "reports:export"}, bearer(adminTok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(h.api, http.MethodPost, "/api/v1/permissions", map[string]string{"name": "not a permission"}, bearer(adminTok))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "rbac.invalid_permission_name", decode(t, w, nil).Key)

	var perms []domain.Permission
	decode(t, h.do(h.api, http.MethodGet, "/api/v1/permissions", nil, bearer(adminTok)), &perms)
	assert.Len(t, perms, len(domain.BuiltinPermissions)+1)
}

func TestOAuthRedirectFlow(t *testing.T) {
	h := newHarness(t)

	w := h.do(h.api, http.MethodGet, "/api/v1/oauth/google/authorize", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		URL string `json:"url"`
	}
	decode(t, w, &out)
	u, err := url.Parse(out.URL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	h.oauth.Code(domain.ProviderGoogle, "abc", "g-123", "grace@example.com")
	cb := "/api/v1/oauth/google/callback?code=abc&state=" + url.QueryEscape(state)

	w = h.do(h.api, http.MethodGet, cb, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var s sessionBody
	decode(t, w, &s)
	assert.Equal(t, "grace@example.com", s.User.Email)
	assert.NotEmpty(t, refreshCookie(t, w, h.cfg.Cookie.Name).Value)

	w = h.do(h.api, http.MethodGet, cb, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "oauth.state_invalid", decode(t, w, nil).Key)
}

func TestOAuthUnknownAndDisabledProviders(t *testing.T) {
	h := newHarness(t)

	w := h.do(h.api, http.MethodGet, "/api/v1/oauth/myspace/authorize", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "oauth.unknown_provider", decode(t, w, nil).Key)

	w = h.do(h.api, http.MethodGet, "/api/v1/oauth/apple/authorize", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "oauth.provider_disabled", decode(t, w, nil).Key)
}

func TestOAuthLinkAndUnlink(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.signup("ada@example.com", "Secret123")
	h.oauth.Code(domain.ProviderGoogle, "c1", "g-ada", "ada@gmail.com")

	w := h.do(h.api, http.MethodPost, "/api/v1/oauth/google/link", map[string]string{"code": "c1"}, bearer(tok))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var conn domain.OAuthConnection
	decode(t, w, &conn)
	assert.Equal(t, "g-ada", conn.ProviderUserID)
	assert.NotContains(t, w.Body.String(), "up-c1", "upstream tokens never leave the server")

	var conns []domain.OAuthConnection
	decode(t, h.do(h.api, http.MethodGet, "/api/v1/oauth/connections", nil, bearer(tok)), &conns)
	assert.Len(t, conns, 1)

	w = h.do(h.api, http.MethodDelete, "/api/v1/oauth/google", nil, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.do(h.api, http.MethodDelete, "/api/v1/oauth/google", nil, bearer(tok))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOAuthDirectLoginNeedsCode(t *testing.T) {
	h := newHarness(t)
	w := h.do(h.api, http.MethodPost, "/api/v1/oauth/google/login", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(h.api, http.MethodPost, "/api/v1/oauth/google/login", map[string]string{"code": "never-issued"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "oauth.exchange_failed", decode(t, w, nil).Key)
}

func TestHealthReadyMetrics(t *testing.T) {
	down := handler.Probe{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}
	up := handler.Probe{Name: "db", Check: func(context.Context) error { return nil }}

	h := newHarness(t, up)
	assert.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(h.api, http.MethodGet, "/ready", nil).Code)

	h = newHarness(t, up, down)
	w := h.do(h.api, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
	assert.NotContains(t, w.Body.String(), "refused")

	h.do(h.api, http.MethodGet, "/health", nil)
	w = h.do(h.api, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "api_http_requests_total")
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	h := newHarness(t)
	w := h.do(h.api, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "common.not_found", decode(t, w, nil).Key)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAdminEngine(t *testing.T) {
	h := newHarness(t)
	userTok, _ := h.signup("ada@example.com", "Secret123")
	adminTok := h.adminToken()
	ada, _ := h.store.Users().FindByEmail(context.Background(), "ada@example.com")

	w := h.do(h.admin, http.MethodGet, "/admin/v1/users", nil, bearer(userTok))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(h.admin, http.MethodGet, "/admin/v1/users?page=1&size=10", nil, bearer(adminTok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		List  []domain.PublicUser `json:"list"`
		Total int64               `json:"total"`
	}
	decode(t, w, &page)
	assert.Equal(t, int64(2), page.Total)

	w = h.do(h.admin, http.MethodPost, "/admin/v1/users/"+ada.ID+"/deactivate", nil, bearer(adminTok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(h.api, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ada@example.com", "password": "Secret123"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "user.account_disabled", decode(t, w, nil).Key)

	// the role surface is mounted on the admin engine too
	w = h.do(h.admin, http.MethodGet, "/admin/v1/roles", nil, bearer(adminTok))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"admin"`))
}
