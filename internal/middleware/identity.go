package middleware

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/goby-chat/internal/domain"
)

// UserContextKey is the echo context key holding the logged-in *domain.User.
const UserContextKey = "user"

// SessionName is the cookie carrying the login identity.
const SessionName = "chat_session"

const (
	sessKeyUserID      = "user_id"
	sessKeyUsername    = "username"
	sessKeyDisplayName = "display_name"
)

// NewCookieStore returns the session store used for login cookies.
func NewCookieStore(secret string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Identity loads the login identity from the session cookie, when there is
// one, and stores it under UserContextKey. It never rejects a request.
func Identity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if user := userFromSession(c); user != nil {
			c.Set(UserContextKey, user)
		}
		return next(c)
	}
}

// RequireUser rejects requests without a login identity. It must run after
// Identity.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := CurrentUser(c); !ok {
			return domain.Unauthenticated(c.Request().Method + " " + c.Path())
		}
		return next(c)
	}
}

// CurrentUser returns the user set by Identity.
func CurrentUser(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(UserContextKey).(*domain.User)
	return user, ok && user != nil
}

// SetIdentity writes user into the session cookie.
func SetIdentity(c echo.Context, user *domain.User) error {
	sess, err := session.Get(SessionName, c)
	if err != nil && sess == nil {
		return err
	}
	sess.Values[sessKeyUserID] = user.ID
	sess.Values[sessKeyUsername] = user.Username
	sess.Values[sessKeyDisplayName] = user.DisplayName
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return err
	}
	c.Set(UserContextKey, user)
	return nil
}

// ClearIdentity expires the session cookie.
func ClearIdentity(c echo.Context) error {
	sess, err := session.Get(SessionName, c)
	if err != nil && sess == nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

func userFromSession(c echo.Context) *domain.User {
	sess, err := session.Get(SessionName, c)
	if err != nil || sess == nil {
		// A cookie signed with another secret lands here.
		return nil
	}
	id, ok := sess.Values[sessKeyUserID].(int64)
	if !ok || id <= 0 {
		return nil
	}
	username, _ := sess.Values[sessKeyUsername].(string)
	displayName, _ := sess.Values[sessKeyDisplayName].(string)
	return &domain.User{ID: id, Username: username, DisplayName: displayName}
}
