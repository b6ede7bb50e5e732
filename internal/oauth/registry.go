package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"learnhub-auth/internal/domain"
)

type provider struct {
	Settings
	conf *oauth2.Config

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

// Registry is the Client backed by golang.org/x/oauth2. OIDC discovery runs
// lazily on first use, once per provider.
type Registry struct {
	hc        *http.Client
	log       *zap.Logger
	providers map[domain.Provider]*provider
	discover  singleflight.Group
}

func NewRegistry(hc *http.Client, l *zap.Logger, settings ...Settings) *Registry {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if l == nil {
		l = zap.NewNop()
	}
	r := &Registry{hc: hc, log: l.Named("oauth"), providers: map[domain.Provider]*provider{}}
	for _, s := range settings {
		r.providers[s.Provider] = &provider{Settings: s, conf: s.oauth2Config()}
	}
	return r
}

var _ Client = (*Registry)(nil)

func (r *Registry) IsProviderEnabled(p domain.Provider) bool {
	_, ok := r.providers[p]
	return ok
}

func (r *Registry) get(p domain.Provider) (*provider, error) {
	pr, ok := r.providers[p]
	if !ok {
		return nil, domain.ErrProviderDisabled
	}
	return pr, nil
}

func (r *Registry) ctx(ctx context.Context) context.Context {
	return oidc.ClientContext(context.WithValue(ctx, oauth2.HTTPClient, r.hc), r.hc)
}

func (r *Registry) AuthorizationURL(p domain.Provider, state, codeVerifier string) (string, error) {
	pr, err := r.get(p)
	if err != nil {
		return "", err
	}
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if codeVerifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(codeVerifier))
	}
	for k, v := range pr.AuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return pr.conf.AuthCodeURL(state, opts...), nil
}

func (r *Registry) ExchangeCodeForTokens(ctx context.Context, p domain.Provider, code, codeVerifier string) (*ExchangeResult, error) {
	pr, err := r.get(p)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, domain.Wrap(domain.ErrOAuthExchangeFailed, errors.New("empty authorization code"))
	}
	ctx = r.ctx(ctx)

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}
	tok, err := pr.conf.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, domain.Wrap(domain.ErrOAuthExchangeFailed, err)
	}

	var prof Profile
	if pr.Issuer != "" {
		prof, err = r.idTokenProfile(ctx, pr, tok)
	} else {
		prof, err = r.userInfoProfile(ctx, pr, tok)
	}
	if err != nil {
		return nil, domain.Wrap(domain.ErrOAuthExchangeFailed, err)
	}
	if prof.ProviderUserID == "" {
		return nil, domain.Wrap(domain.ErrOAuthExchangeFailed, errors.New("profile without subject"))
	}
	return &ExchangeResult{Profile: prof, Tokens: tokensOf(tok)}, nil
}

func tokensOf(tok *oauth2.Token) Tokens {
	t := Tokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		t.ExpiresAt = &exp
	}
	return t
}

func (r *Registry) verifierFor(ctx context.Context, pr *provider) (*oidc.IDTokenVerifier, error) {
	pr.mu.Lock()
	v := pr.verifier
	pr.mu.Unlock()
	if v != nil {
		return v, nil
	}
	res, err, _ := r.discover.Do(string(pr.Provider), func() (any, error) {
		op, err := oidc.NewProvider(ctx, pr.Issuer)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery %s: %w", pr.Issuer, err)
		}
		v := op.Verifier(&oidc.Config{ClientID: pr.ClientID})
		r.log.Info("oidc provider discovered", zap.String("provider", string(pr.Provider)))
		pr.mu.Lock()
		pr.verifier = v
		pr.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*oidc.IDTokenVerifier), nil
}

type idClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"` // apple sends "true" as a string
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (r *Registry) idTokenProfile(ctx context.Context, pr *provider, tok *oauth2.Token) (Profile, error) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return Profile{}, errors.New("missing id_token in response")
	}
	v, err := r.verifierFor(ctx, pr)
	if err != nil {
		return Profile{}, err
	}
	idt, err := v.Verify(ctx, raw)
	if err != nil {
		return Profile{}, fmt.Errorf("verify id_token: %w", err)
	}
	var c idClaims
	if err := idt.Claims(&c); err != nil {
		return Profile{}, fmt.Errorf("id_token claims: %w", err)
	}
	return Profile{
		ProviderUserID: idt.Subject,
		Email:          c.Email,
		EmailVerified:  truthy(c.EmailVerified),
		Name:           c.Name,
		AvatarURL:      c.Picture,
	}, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	}
	return false
}

type graphUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func (r *Registry) userInfoProfile(ctx context.Context, pr *provider, tok *oauth2.Token) (Profile, error) {
	resp, err := pr.conf.Client(ctx, tok).Get(pr.UserInfoURL)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Profile{}, fmt.Errorf("user info status %d: %s", resp.StatusCode, body)
	}
	var u graphUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return Profile{}, fmt.Errorf("decode user info: %w", err)
	}
	return Profile{
		ProviderUserID: u.ID,
		Email:          u.Email,
		EmailVerified:  u.Email != "",
		Name:           u.Name,
		AvatarURL:      u.Picture.Data.URL,
	}, nil
}

func (r *Registry) RefreshAccessToken(ctx context.Context, p domain.Provider, refreshToken string) (*Tokens, error) {
	pr, err := r.get(p)
	if err != nil {
		return nil, err
	}
	tok, err := pr.conf.TokenSource(r.ctx(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, domain.Wrap(domain.ErrOAuthExchangeFailed, err)
	}
	t := tokensOf(tok)
	if t.RefreshToken == "" {
		t.RefreshToken = refreshToken
	}
	return &t, nil
}

func (r *Registry) RevokeToken(ctx context.Context, p domain.Provider, token string) error {
	pr, err := r.get(p)
	if err != nil {
		return err
	}
	if pr.RevokeURL == "" || token == "" {
		return nil
	}
	form := url.Values{"token": {token}}
	switch pr.Provider {
	case domain.ProviderApple:
		form.Set("client_id", pr.ClientID)
		form.Set("client_secret", pr.ClientSecret)
		form.Set("token_type_hint", "access_token")
	case domain.ProviderFacebook:
		form = url.Values{"access_token": {token}}
	}

	var req *http.Request
	if pr.RevokeMethod == http.MethodDelete {
		req, err = http.NewRequestWithContext(ctx, http.MethodDelete, pr.RevokeURL+"?"+form.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, pr.RevokeURL, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return err
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("revoke %s: status %d", p, resp.StatusCode)
	}
	return nil
}
