// Package i18n turns message keys into text for the caller's language.
package i18n

import (
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const ctxKeyTag = "lang"

// Translator resolves a request language and renders keys with it.
type Translator struct {
	cat     *catalog.Builder
	matcher language.Matcher
	tags    []language.Tag
}

// New loads the built-in English and Spanish catalogs. English is the fallback.
func New() *Translator {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	sets := []struct {
		tag  language.Tag
		msgs map[string]string
	}{
		{language.English, english},
		{language.Spanish, spanish},
	}
	tags := make([]language.Tag, 0, len(sets))
	for _, s := range sets {
		for k, v := range s.msgs {
			_ = b.SetString(s.tag, k, v)
		}
		tags = append(tags, s.tag)
	}
	return &Translator{cat: b, matcher: language.NewMatcher(tags), tags: tags}
}

// Supported lists the catalog languages, fallback first.
func (t *Translator) Supported() []language.Tag { return t.tags }

// Match picks the closest supported language for an Accept-Language header.
func (t *Translator) Match(acceptLanguage string) language.Tag {
	if strings.TrimSpace(acceptLanguage) == "" {
		return t.tags[0]
	}
	desired, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(desired) == 0 {
		return t.tags[0]
	}
	_, idx, _ := t.matcher.Match(desired...)
	return t.tags[idx]
}

// Text renders key in tag. Unknown keys come back unchanged.
func (t *Translator) Text(tag language.Tag, key string) string {
	p := message.NewPrinter(tag, message.Catalog(t.cat))
	return p.Sprintf(message.Key(key, key))
}

// Middleware stores the negotiated language on the gin context.
func (t *Translator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tag := t.Match(c.GetHeader("Accept-Language"))
		c.Set(ctxKeyTag, tag)
		c.Header("Content-Language", tag.String())
		c.Next()
	}
}

// FromContext renders key in the language chosen for this request.
func (t *Translator) FromContext(c *gin.Context, key string) string {
	tag := t.tags[0]
	if v, ok := c.Get(ctxKeyTag); ok {
		if lt, ok := v.(language.Tag); ok {
			tag = lt
		}
	}
	return t.Text(tag, key)
}
