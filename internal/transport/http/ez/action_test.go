package ez

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/transport/http/i18n"
	resp "learnhub-auth/internal/transport/http/response"
)

type greetIn struct {
	ID   string `uri:"id" json:"-"`
	Name string `json:"name" binding:"required"`
}

type greetOut struct {
	Text string `json:"text"`
}

func engine[I, O any](t *testing.T, a Action[I, O]) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 64)
		c.Next()
	})
	Register(r, resp.NewWriter(i18n.New(), zap.NewNop()), a)
	return r
}

func call(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, resp.Resp) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out resp.Resp
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestRegisterBindsPathAndBody(t *testing.T) {
	r := engine(t, Action[greetIn, greetOut]{
		Method: http.MethodPost,
		Path:   "/greet/:id",
		Binder: BindURIJSON,
		Status: http.StatusCreated,
		Handler: func(_ *gin.Context, in *greetIn) (greetOut, error) {
			return greetOut{Text: in.ID + ":" + in.Name}, nil
		},
	})

	w, out := call(r, http.MethodPost, "/greet/7", `{"name":"ada"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, resp.CodeOK, out.Code)
	assert.Equal(t, map[string]any{"text": "7:ada"}, out.Data)

	w, out = call(r, http.MethodPost, "/greet/7", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, i18n.KeyBadRequest, out.Key)

	w, out = call(r, http.MethodPost, "/greet/7", `{"name":"`+strings.Repeat("a", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, i18n.KeyBodyTooLarge, out.Key)
}

func TestRegisterMapsDomainErrors(t *testing.T) {
	r := engine(t, Action[greetIn, greetOut]{
		Method: http.MethodPut,
		Path:   "/greet/:id",
		Binder: BindURIJSON,
		Handler: func(*gin.Context, *greetIn) (greetOut, error) {
			return greetOut{}, domain.ErrRoleNotFound
		},
	})
	w, out := call(r, http.MethodPut, "/greet/1", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(domain.KeyRoleNotFound), out.Key)
	assert.NotEmpty(t, out.Msg)
}

func TestRegisterLeavesWrittenResponsesAlone(t *testing.T) {
	type pathIn struct {
		ID string `uri:"id" binding:"required"`
	}
	r := engine(t, Action[pathIn, Empty]{
		Method: http.MethodGet,
		Path:   "/redirect/:id",
		Binder: BindURI,
		Handler: func(c *gin.Context, in *pathIn) (Empty, error) {
			c.Redirect(http.StatusFound, "https://example.com/"+in.ID)
			return Empty{}, nil
		},
	})
	w, _ := call(r, http.MethodGet, "/redirect/9", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/9", w.Header().Get("Location"))
}
