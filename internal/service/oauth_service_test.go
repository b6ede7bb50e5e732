package service

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/events"
)

func TestOAuthLoginCreatesUserWithoutPassword(t *testing.T) {
	f := newFixture(t)
	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "New.Person@Example.com")

	s, err := f.svc.OAuth.Login(f.ctx, "google", "c1", "", meta)
	require.NoError(t, err)
	assert.Equal(t, "new.person@example.com", s.User.Email)
	assert.Equal(t, []string{domain.RoleUser}, s.User.Roles)
	assert.NotEmpty(t, s.RefreshToken)

	u := f.user(s.User.ID)
	assert.False(t, u.HasPassword)
	assert.NotEmpty(t, u.PasswordHash)
	assert.Equal(t, "OAuth Person", u.FullName)

	conns, err := f.svc.OAuth.Connections(f.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "up-c1", conns[0].AccessToken)
	assert.Equal(t, 2, f.published(events.UserRegistered), "admin plus the new account")
	assert.Equal(t, 1, f.published(events.OAuthLinked))
}

func TestOAuthLoginLinksByEmail(t *testing.T) {
	f := newFixture(t)
	local := f.register("jane@example.com", "Secret!23")
	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "JANE@example.com")

	s, err := f.svc.OAuth.Login(f.ctx, "google", "c1", "", meta)
	require.NoError(t, err)
	assert.Equal(t, local.ID, s.User.ID)

	page, err := f.svc.Users.ListUsers(f.ctx, f.admin.ID, 1, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total, "no duplicate account")
}

func TestOAuthReturningLoginRefreshesConnection(t *testing.T) {
	f := newFixture(t)
	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "jane@example.com")
	f.oauth.Code(domain.ProviderGoogle, "c2", "g-1", "jane@example.com")

	first, err := f.svc.OAuth.Login(f.ctx, "google", "c1", "", meta)
	require.NoError(t, err)
	second, err := f.svc.OAuth.Login(f.ctx, "google", "c2", "", meta)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	conns, err := f.svc.OAuth.Connections(f.ctx, first.User.ID)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "up-c2", conns[0].AccessToken)
}

func TestOAuthLoginWithoutEmailUsesPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.oauth.Code(domain.ProviderFacebook, "c1", "FB-42", "")

	s, err := f.svc.OAuth.Login(f.ctx, "facebook", "c1", "", meta)
	require.NoError(t, err)
	assert.Equal(t, placeholderEmail(domain.ProviderFacebook, "FB-42"), s.User.Email)
	assert.True(t, strings.HasPrefix(s.User.Email, "facebook_"))
	assert.True(t, strings.HasSuffix(s.User.Email, "@oauth.placeholder.local"))
}

func TestPlaceholderEmailsDifferByCase(t *testing.T) {
	f := newFixture(t)
	f.oauth.Code(domain.ProviderFacebook, "c1", "AbC", "")
	f.oauth.Code(domain.ProviderFacebook, "c2", "abc", "")

	first, err := f.svc.OAuth.Login(f.ctx, "facebook", "c1", "", meta)
	require.NoError(t, err)
	second, err := f.svc.OAuth.Login(f.ctx, "facebook", "c2", "", meta)
	require.NoError(t, err)
	assert.NotEqual(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.User.Email, second.User.Email)
	assert.Equal(t, placeholderEmail(domain.ProviderFacebook, "AbC"), placeholderEmail(domain.ProviderFacebook, "AbC"))
}

func TestOrphanedConnectionIsRemoved(t *testing.T) {
	f := newFixture(t)
	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "jane@example.com")
	f.oauth.Code(domain.ProviderGoogle, "c2", "g-1", "jane@example.com")
	s, err := f.svc.OAuth.Login(f.ctx, "google", "c1", "", meta)
	require.NoError(t, err)

	f.store.DeleteUser(s.User.ID)

	_, err = f.svc.OAuth.Login(f.ctx, "google", "c2", "", meta)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	conn, err := f.store.Connections().FindByProviderUserID(f.ctx, domain.ProviderGoogle, "g-1")
	require.NoError(t, err)
	assert.Nil(t, conn)
	assert.Equal(t, 1, f.logs.FilterMessage("orphaned oauth connection removed").Len())
}

func TestOAuthProviderChecks(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.OAuth.Login(f.ctx, "myspace", "c", "", meta)
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
	_, err = f.svc.OAuth.Login(f.ctx, "local", "c", "", meta)
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
	_, err = f.svc.OAuth.Login(f.ctx, "apple", "c", "", meta)
	assert.ErrorIs(t, err, domain.ErrProviderDisabled)

	_, err = f.svc.OAuth.Login(f.ctx, "google", "bad-code", "", meta)
	assert.ErrorIs(t, err, domain.ErrOAuthExchangeFailed)
}

func TestUnlinkOnlyAuthMethod(t *testing.T) {
	f := newFixture(t)
	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "jane@example.com")
	f.oauth.Code(domain.ProviderFacebook, "c2", "fb-1", "jane@example.com")
	s, err := f.svc.OAuth.Login(f.ctx, "google", "c1", "", meta)
	require.NoError(t, err)
	uid := s.User.ID

	err = f.svc.OAuth.Unlink(f.ctx, uid, "google")
	assert.ErrorIs(t, err, domain.ErrOnlyAuthMethod)
	assert.Equal(t, domain.KindInvariant, domain.KindOf(err))

	_, err = f.svc.OAuth.Link(f.ctx, uid, "facebook", "c2", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.OAuth.Unlink(f.ctx, uid, "google"))
	assert.Equal(t, []string{"google:up-c1"}, f.oauth.Revoked())

	err = f.svc.OAuth.Unlink(f.ctx, uid, "facebook")
	assert.ErrorIs(t, err, domain.ErrOnlyAuthMethod)
	err = f.svc.OAuth.Unlink(f.ctx, uid, "google")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestUnlinkWithPasswordAndFailingRevoke(t *testing.T) {
	f := newFixture(t)
	u := f.register("jane@example.com", "Secret!23")
	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "")
	_, err := f.svc.OAuth.Link(f.ctx, u.ID, "google", "c1", "")
	require.NoError(t, err)

	f.oauth.RevokeErr = errors.New("upstream down")
	require.NoError(t, f.svc.OAuth.Unlink(f.ctx, u.ID, "google"))
	assert.Equal(t, 1, f.logs.FilterMessage("upstream token revoke failed").Len())
	assert.Equal(t, 1, f.published(events.OAuthUnlinked))
}

func TestLinkRefusesTakeover(t *testing.T) {
	f := newFixture(t)
	alice := f.register("alice@example.com", "Secret!23")
	bob := f.register("bob@example.com", "Secret!23")
	f.oauth.Code(domain.ProviderGoogle, "a1", "g-shared", "")
	f.oauth.Code(domain.ProviderGoogle, "b1", "g-shared", "")
	f.oauth.Code(domain.ProviderGoogle, "a2", "g-other", "")

	conn, err := f.svc.OAuth.Link(f.ctx, alice.ID, "google", "a1", "")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, conn.UserID)

	_, err = f.svc.OAuth.Link(f.ctx, bob.ID, "google", "b1", "")
	assert.ErrorIs(t, err, domain.ErrIdentityLinkedElsewhere)

	_, err = f.svc.OAuth.Link(f.ctx, alice.ID, "google", "a2", "")
	assert.ErrorIs(t, err, domain.ErrProviderAlreadyLinked)

	_, err = f.svc.OAuth.Link(f.ctx, "ghost", "google", "a2", "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthorizationURLStateIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "jane@example.com")

	raw, err := f.svc.OAuth.AuthorizationURL(f.ctx, "google", "")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	_, err = f.svc.OAuth.Callback(f.ctx, "facebook", state, "c1", meta)
	assert.ErrorIs(t, err, domain.ErrOAuthStateInvalid, "state is bound to its provider")

	raw, err = f.svc.OAuth.AuthorizationURL(f.ctx, "google", "")
	require.NoError(t, err)
	u, _ = url.Parse(raw)
	state = u.Query().Get("state")

	res, err := f.svc.OAuth.Callback(f.ctx, "google", state, "c1", meta)
	require.NoError(t, err)
	require.NotNil(t, res.Session)

	_, err = f.svc.OAuth.Callback(f.ctx, "google", state, "c1", meta)
	assert.ErrorIs(t, err, domain.ErrOAuthStateInvalid)
}

func TestCallbackLinksForSignedInUser(t *testing.T) {
	f := newFixture(t)
	u := f.register("jane@example.com", "Secret!23")
	f.oauth.Code(domain.ProviderFacebook, "c1", "fb-1", "other@example.com")

	raw, err := f.svc.OAuth.AuthorizationURL(f.ctx, "facebook", u.ID)
	require.NoError(t, err)
	parsed, _ := url.Parse(raw)

	res, err := f.svc.OAuth.Callback(f.ctx, "facebook", parsed.Query().Get("state"), "c1", meta)
	require.NoError(t, err)
	require.NotNil(t, res.Connection)
	assert.Nil(t, res.Session)
	assert.Equal(t, u.ID, res.Connection.UserID)
}

func TestUpstreamAccessTokenRenewsWhenExpired(t *testing.T) {
	f := newFixture(t)
	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "jane@example.com")
	s, err := f.svc.OAuth.Login(f.ctx, "google", "c1", "", meta)
	require.NoError(t, err)

	tok, err := f.svc.OAuth.UpstreamAccessToken(f.ctx, s.User.ID, "google")
	require.NoError(t, err)
	assert.Equal(t, "up-c1", tok, "no expiry means the cached token is used")
	assert.Empty(t, f.oauth.Refreshed())

	conns := f.store.Connections()
	c, err := conns.FindByUserAndProvider(f.ctx, s.User.ID, domain.ProviderGoogle)
	require.NoError(t, err)
	expired := f.now.Add(-time.Minute)
	c.TokenExpiresAt = &expired
	require.NoError(t, conns.Update(f.ctx, c))

	tok, err = f.svc.OAuth.UpstreamAccessToken(f.ctx, s.User.ID, "google")
	require.NoError(t, err)
	assert.Equal(t, "fresh-upr-c1", tok)
	assert.Equal(t, []string{"google:upr-c1"}, f.oauth.Refreshed())

	c, err = conns.FindByUserAndProvider(f.ctx, s.User.ID, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "fresh-upr-c1", c.AccessToken)
	assert.Equal(t, "upr-c1", c.RefreshToken, "kept when the provider does not rotate it")
}

func TestUpstreamAccessTokenFailures(t *testing.T) {
	f := newFixture(t)
	u := f.register("jane@example.com", "Secret!23")
	_, err := f.svc.OAuth.UpstreamAccessToken(f.ctx, u.ID, "google")
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)

	_, err = f.svc.OAuth.UpstreamAccessToken(f.ctx, u.ID, "apple")
	assert.ErrorIs(t, err, domain.ErrProviderDisabled)

	f.oauth.Code(domain.ProviderGoogle, "c1", "g-1", "jane@example.com")
	_, err = f.svc.OAuth.Link(f.ctx, u.ID, "google", "c1", "")
	require.NoError(t, err)
	conns := f.store.Connections()
	c, _ := conns.FindByUserAndProvider(f.ctx, u.ID, domain.ProviderGoogle)
	expired := f.now.Add(-time.Minute)
	c.TokenExpiresAt = &expired
	require.NoError(t, conns.Update(f.ctx, c))

	f.oauth.RefreshErr = domain.Wrap(domain.ErrOAuthExchangeFailed, errors.New("invalid_grant"))
	_, err = f.svc.OAuth.UpstreamAccessToken(f.ctx, u.ID, "google")
	assert.ErrorIs(t, err, domain.ErrOAuthExchangeFailed)
}
