package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityServer(secret string) *echo.Echo {
	e := echo.New()
	e.Use(session.Middleware(NewCookieStore(secret)))
	e.Use(Identity)

	e.POST("/login", func(c echo.Context) error {
		return SetIdentity(c, &domain.User{ID: 42, Username: "alice", DisplayName: "Alice"})
	})
	e.POST("/logout", func(c echo.Context) error {
		return ClearIdentity(c)
	})
	e.GET("/me", func(c echo.Context) error {
		user, _ := CurrentUser(c)
		return c.JSON(http.StatusOK, user)
	}, RequireUser)
	return e
}

func TestIdentity_RoundTrip(t *testing.T) {
	e := newIdentityServer("secret-one")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":42,"username":"alice","display_name":"Alice"}`, rec.Body.String())
}

func TestRequireUser_RejectsAnonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/me", nil), httptest.NewRecorder())

	called := false
	err := RequireUser(func(c echo.Context) error {
		called = true
		return nil
	})(c)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuth))
	assert.False(t, called)
}

func TestIdentity_IgnoresForeignCookie(t *testing.T) {
	signer := newIdentityServer("secret-one")
	rec := httptest.NewRecorder()
	signer.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	var seen *domain.User
	other := echo.New()
	other.Use(session.Middleware(NewCookieStore("secret-two")))
	other.Use(Identity)
	other.GET("/", func(c echo.Context) error {
		seen, _ = CurrentUser(c)
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	out := httptest.NewRecorder()
	other.ServeHTTP(out, req)

	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Nil(t, seen)
}

func TestClearIdentity_ExpiresCookie(t *testing.T) {
	e := newIdentityServer("secret-one")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionName {
			found = true
			assert.True(t, c.MaxAge < 0)
		}
	}
	assert.True(t, found)
}
