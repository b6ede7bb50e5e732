package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/transport/http/i18n"
)

// Writer renders envelopes with localised messages. Internal failures are
// logged here and never leak their cause to the client.
type Writer struct {
	T   *i18n.Translator
	Log *zap.Logger
}

func NewWriter(t *i18n.Translator, l *zap.Logger) *Writer {
	if l == nil {
		l = zap.NewNop()
	}
	return &Writer{T: t, Log: l}
}

func (w *Writer) msg(c *gin.Context, key string) string {
	if w.T == nil {
		return key
	}
	return w.T.FromContext(c, key)
}

func (w *Writer) OK(c *gin.Context, status int, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	r := OK(data)
	r.Msg = w.msg(c, i18n.KeyOK)
	c.JSON(status, r)
}

// Abort stops the chain with an error envelope whose code equals the status.
func (w *Writer) Abort(c *gin.Context, status int, key string) {
	c.AbortWithStatusJSON(status, Error(status, key, w.msg(c, key)))
}

// Fail maps err to a status through its domain kind.
func (w *Writer) Fail(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	key := string(domain.KeyOf(err))
	if kind == domain.KindInternal {
		w.Log.Error("request failed",
			zap.String("rid", c.GetString("rid")),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		key = string(domain.KeyInternal)
	}
	w.Abort(c, StatusFor(kind), key)
}
