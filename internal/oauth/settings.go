package oauth

import (
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"learnhub-auth/internal/core/config"
	"learnhub-auth/internal/domain"
)

// Settings describe one provider. OIDC providers (Issuer set) take the
// profile from the verified id_token; the others call UserInfoURL.
type Settings struct {
	Provider     domain.Provider
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint

	Issuer       string
	UserInfoURL  string
	RevokeURL    string
	RevokeMethod string
	// AuthParams are appended to the authorization URL.
	AuthParams map[string]string
}

func GoogleSettings(c config.OAuthProvider) Settings {
	return Settings{
		Provider:     domain.ProviderGoogle,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopesOr(c.Scopes, "openid", "email", "profile"),
		Endpoint:     endpoints.Google,
		Issuer:       "https://accounts.google.com",
		RevokeURL:    "https://oauth2.googleapis.com/revoke",
		RevokeMethod: http.MethodPost,
		AuthParams:   map[string]string{"prompt": "select_account"},
	}
}

func FacebookSettings(c config.OAuthProvider) Settings {
	return Settings{
		Provider:     domain.ProviderFacebook,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopesOr(c.Scopes, "email", "public_profile"),
		Endpoint:     endpoints.Facebook,
		UserInfoURL:  "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)",
		RevokeURL:    "https://graph.facebook.com/me/permissions",
		RevokeMethod: http.MethodDelete,
	}
}

// AppleSettings expects ClientSecret to be the pre-signed client secret JWT.
func AppleSettings(c config.OAuthProvider) Settings {
	return Settings{
		Provider:     domain.ProviderApple,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopesOr(c.Scopes, "name", "email"),
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://appleid.apple.com/auth/authorize",
			TokenURL:  "https://appleid.apple.com/auth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Issuer:       "https://appleid.apple.com",
		RevokeURL:    "https://appleid.apple.com/auth/revoke",
		RevokeMethod: http.MethodPost,
		AuthParams:   map[string]string{"response_mode": "form_post"},
	}
}

// FromConfig returns settings for every enabled provider.
func FromConfig(c config.OAuth) []Settings {
	var out []Settings
	if c.Google.Enabled {
		out = append(out, GoogleSettings(c.Google))
	}
	if c.Facebook.Enabled {
		out = append(out, FacebookSettings(c.Facebook))
	}
	if c.Apple.Enabled {
		out = append(out, AppleSettings(c.Apple))
	}
	return out
}

func scopesOr(s []string, def ...string) []string {
	if len(s) > 0 {
		return s
	}
	return def
}

func (s Settings) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Endpoint:     s.Endpoint,
		RedirectURL:  s.RedirectURL,
		Scopes:       s.Scopes,
	}
}
