package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnhub-auth/internal/core/auth"
	"learnhub-auth/internal/core/config"
	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/service"
	"learnhub-auth/internal/testkit/authfakes"
	"learnhub-auth/internal/transport/http/handler"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	t      *testing.T
	store  *authfakes.Store
	oauth  *authfakes.OAuth
	svc    *service.Services
	jwt    *auth.JWTer
	cfg    *config.Config
	api    *gin.Engine
	admin  *gin.Engine
	probes []handler.Probe
}

func newHarness(t *testing.T, probes ...handler.Probe) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.App.Env = "test"
	cfg.JWT.Secret = "router-test-secret"
	cfg.Security.AuthRPS = 1000
	cfg.Security.AuthBurst = 1000

	h := &harness{
		t:      t,
		store:  authfakes.NewStore(),
		oauth:  authfakes.NewOAuth(),
		cfg:    cfg,
		probes: probes,
		jwt: &auth.JWTer{
			Secret:     []byte(cfg.JWT.Secret),
			Issuer:     cfg.JWT.Issuer,
			TTL:        cfg.JWT.AccessTTL(),
			RefreshTTL: cfg.JWT.RefreshTTL(),
		},
	}
	h.svc = service.New(service.Deps{
		Users:       h.store.Users(),
		Roles:       h.store.Roles(),
		Permissions: h.store.Permissions(),
		Connections: h.store.Connections(),
		Tokens:      h.store.Tokens(),
		Tx:          authfakes.Tx{},
		Hasher:      authfakes.PlainHasher{},
		JWT:         h.jwt,
		OAuth:       h.oauth,
		States:      &authfakes.States{},
		Log:         zap.NewNop(),
	})
	require.NoError(t, h.svc.RBAC.Seed(context.Background()))

	deps := Deps{
		Log:      zap.NewNop(),
		Config:   cfg,
		Services: h.svc,
		JWT:      h.jwt,
		Probes:   probes,
	}
	h.api = NewAPIEngine(deps)
	h.admin = NewAdminEngine(deps)
	return h
}

type reqOpt func(*http.Request)

func bearer(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func lang(tag string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Accept-Language", tag) }
}

func (h *harness) do(e *gin.Engine, method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", name)
	return nil
}

type sessionBody struct {
	AccessToken string            `json:"accessToken"`
	TokenType   string            `json:"tokenType"`
	ExpiresIn   int64             `json:"expiresIn"`
	User        domain.PublicUser `json:"user"`
}

// signup registers and logs in, returning the access token and refresh cookie.
func (h *harness) signup(email, password string) (string, *http.Cookie) {
	h.t.Helper()
	w := h.do(h.api, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": email, "password": password})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return h.login(email, password)
}

func (h *harness) login(email, password string) (string, *http.Cookie) {
	h.t.Helper()
	w := h.do(h.api, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var s sessionBody
	decode(h.t, w, &s)
	return s.AccessToken, refreshCookie(h.t, w, h.cfg.Cookie.Name)
}

func (h *harness) adminToken() string {
	h.t.Helper()
	h.signup("root@example.com", "RootPass!1")
	_, err := h.svc.RBAC.Promote(context.Background(), "root@example.com")
	require.NoError(h.t, err)
	tok, _ := h.login("root@example.com", "RootPass!1")
	return tok
}

func (h *harness) roleID(name string) string {
	h.t.Helper()
	r, err := h.store.Roles().FindByName(context.Background(), name)
	require.NoError(h.t, err)
	require.NotNil(h.t, r)
	return r.ID
}

func (h *harness) expire(d time.Duration) {
	h.jwt.Now = func() time.Time { return time.Now().Add(d) }
}
