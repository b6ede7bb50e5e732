package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/service"
	"learnhub-auth/internal/transport/http/ez"
	resp "learnhub-auth/internal/transport/http/response"
)

// OAuthHandler serves the provider redirect flow, direct code login and the
// authenticated link/unlink surface.
type OAuthHandler struct {
	oauth    *service.OAuthService
	w        *resp.Writer
	jar      CookieJar
	throttle gin.HandlerFunc
}

func NewOAuthHandler(svc *service.Services, w *resp.Writer, jar CookieJar, throttle gin.HandlerFunc) *OAuthHandler {
	if throttle == nil {
		throttle = func(c *gin.Context) { c.Next() }
	}
	return &OAuthHandler{oauth: svc.OAuth, w: w, jar: jar, throttle: throttle}
}

type authorizeOut struct {
	URL string `json:"url"`
}

type callbackQuery struct {
	Code             string `form:"code"`
	State            string `form:"state"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

// callbackOut carries a session for sign-in and the connection for linking.
type callbackOut struct {
	*service.Session
	Connection *domain.OAuthConnection `json:"connection,omitempty"`
}

type codeIn struct {
	Provider     string `uri:"provider"      json:"-"`
	Code         string `json:"code"         binding:"required"`
	CodeVerifier string `json:"codeVerifier"`
}

func (h *OAuthHandler) MountAPI(public, authed *gin.RouterGroup) {
	ez.Register(public, h.w, ez.Action[providerURI, authorizeOut]{
		Method:  http.MethodGet,
		Path:    "/oauth/:provider/authorize",
		Binder:  ez.BindURI,
		Handler: h.authorize,
	})
	ez.Register(public, h.w, ez.Action[providerURI, callbackOut]{
		Method:     http.MethodGet,
		Path:       "/oauth/:provider/callback",
		Binder:     ez.BindURI,
		Middleware: []gin.HandlerFunc{h.throttle},
		Handler:    h.callback,
	})
	// Apple answers with response_mode=form_post.
	ez.Register(public, h.w, ez.Action[providerURI, callbackOut]{
		Method:     http.MethodPost,
		Path:       "/oauth/:provider/callback",
		Binder:     ez.BindURI,
		Middleware: []gin.HandlerFunc{h.throttle},
		Handler:    h.callback,
	})
	ez.Register(public, h.w, ez.Action[codeIn, *service.Session]{
		Method:     http.MethodPost,
		Path:       "/oauth/:provider/login",
		Binder:     ez.BindURIJSON,
		Middleware: []gin.HandlerFunc{h.throttle},
		Handler:    h.login,
	})

	ez.Register(authed, h.w, ez.Action[ez.Empty, []domain.OAuthConnection]{
		Method: http.MethodGet,
		Path:   "/oauth/connections",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.Empty) ([]domain.OAuthConnection, error) {
			return h.oauth.Connections(c.Request.Context(), actor(c))
		},
	})
	ez.Register(authed, h.w, ez.Action[providerURI, authorizeOut]{
		Method:  http.MethodGet,
		Path:    "/oauth/:provider/link/authorize",
		Binder:  ez.BindURI,
		Handler: h.linkAuthorize,
	})
	ez.Register(authed, h.w, ez.Action[codeIn, *domain.OAuthConnection]{
		Method:  http.MethodPost,
		Path:    "/oauth/:provider/link",
		Binder:  ez.BindURIJSON,
		Status:  http.StatusCreated,
		Handler: h.link,
	})
	ez.Register(authed, h.w, ez.Action[providerURI, ez.Empty]{
		Method: http.MethodDelete,
		Path:   "/oauth/:provider",
		Binder: ez.BindURI,
		Handler: func(c *gin.Context, in *providerURI) (ez.Empty, error) {
			return ez.Empty{}, h.oauth.Unlink(c.Request.Context(), actor(c), in.Provider)
		},
	})
}

func (h *OAuthHandler) authorize(c *gin.Context, in *providerURI) (authorizeOut, error) {
	u, err := h.oauth.AuthorizationURL(c.Request.Context(), in.Provider, "")
	if err != nil {
		return authorizeOut{}, err
	}
	if c.Query("redirect") == "1" {
		c.Redirect(http.StatusFound, u)
		return authorizeOut{}, nil
	}
	return authorizeOut{URL: u}, nil
}

func (h *OAuthHandler) linkAuthorize(c *gin.Context, in *providerURI) (authorizeOut, error) {
	u, err := h.oauth.AuthorizationURL(c.Request.Context(), in.Provider, actor(c))
	if err != nil {
		return authorizeOut{}, err
	}
	return authorizeOut{URL: u}, nil
}

func (h *OAuthHandler) callback(c *gin.Context, in *providerURI) (callbackOut, error) {
	var q callbackQuery
	var err error
	if c.Request.Method == http.MethodPost {
		err = c.ShouldBind(&q)
	} else {
		err = c.ShouldBindQuery(&q)
	}
	if err != nil {
		return callbackOut{}, domain.ErrOAuthStateInvalid
	}
	// The user refused consent or the provider failed before issuing a code.
	if q.Error != "" || q.Code == "" {
		return callbackOut{}, domain.ErrOAuthExchangeFailed
	}
	res, err := h.oauth.Callback(c.Request.Context(), in.Provider, q.State, q.Code, meta(c))
	if err != nil {
		return callbackOut{}, err
	}
	if res.Session != nil {
		h.jar.Set(c, res.Session.RefreshToken, res.Session.RefreshExpiresAt)
	}
	return callbackOut{Session: res.Session, Connection: res.Connection}, nil
}

// login is for clients that ran the provider flow themselves (mobile, SPA
// with its own PKCE verifier).
func (h *OAuthHandler) login(c *gin.Context, in *codeIn) (*service.Session, error) {
	s, err := h.oauth.Login(c.Request.Context(), in.Provider, in.Code, in.CodeVerifier, meta(c))
	if err != nil {
		return nil, err
	}
	h.jar.Set(c, s.RefreshToken, s.RefreshExpiresAt)
	return s, nil
}

func (h *OAuthHandler) link(c *gin.Context, in *codeIn) (*domain.OAuthConnection, error) {
	return h.oauth.Link(c.Request.Context(), actor(c), in.Provider, in.Code, in.CodeVerifier)
}
