// Package ez registers JSON endpoints as typed actions: bind the input,
// run the handler, write the envelope.
package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/transport/http/i18n"
	resp "learnhub-auth/internal/transport/http/response"
)

// Binder selects where the action input is read from.
type Binder string

const (
	BindJSON    Binder = "json"     // request body
	BindQuery   Binder = "query"    // ?a=b
	BindURI     Binder = "uri"      // path params, `uri:"id"` tags
	BindURIJSON Binder = "uri+json" // body and path params into the same struct
	BindNone    Binder = "none"     // handler reads the context itself
)

// Action is one endpoint. I is the bound input, O the response data.
type Action[I any, O any] struct {
	Method string
	Path   string
	Binder Binder
	// Status overrides the success status (default 200).
	Status     int
	Middleware []gin.HandlerFunc
	Handler    func(c *gin.Context, in *I) (O, error)
}

// Register mounts a on g. Binding failures answer 400; handler errors go
// through the writer's domain mapping.
func Register[I any, O any](g gin.IRoutes, w *resp.Writer, a Action[I, O]) {
	h := func(c *gin.Context) {
		var in I
		var err error
		switch a.Binder {
		case BindJSON:
			err = c.ShouldBindJSON(&in)
		case BindQuery:
			err = c.ShouldBindQuery(&in)
		case BindURI:
			err = c.ShouldBindUri(&in)
		case BindURIJSON:
			// gin validates after each step, so path fields of such
			// inputs must not carry binding rules
			if err = c.ShouldBindJSON(&in); err == nil {
				err = c.ShouldBindUri(&in)
			}
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				w.Abort(c, http.StatusRequestEntityTooLarge, i18n.KeyBodyTooLarge)
				return
			}
			w.Abort(c, http.StatusBadRequest, i18n.KeyBadRequest)
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			w.Fail(c, err)
			return
		}
		if c.IsAborted() || c.Writer.Written() {
			return
		}
		w.OK(c, a.Status, out)
	}

	handlers := append(append([]gin.HandlerFunc{}, a.Middleware...), h)
	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		g.GET(a.Path, handlers...)
	case http.MethodPut:
		g.PUT(a.Path, handlers...)
	case http.MethodPatch:
		g.PATCH(a.Path, handlers...)
	case http.MethodDelete:
		g.DELETE(a.Path, handlers...)
	default:
		g.POST(a.Path, handlers...)
	}
}

// Empty is the input of actions that take nothing and the output of actions
// that return nothing.
type Empty struct{}
