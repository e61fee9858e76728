package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/authclient"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*authclient.RefreshResponse, error)
}

// AutoRefreshMiddleware verifies access tokens and, for cookie sessions,
// transparently refreshes an expired access token through the auth service.
type AutoRefreshMiddleware struct {
	JWTSecret []byte
	Refresher Refresher
}

func NewAutoRefreshMiddleware(secret []byte, refresher Refresher) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret: secret,
		Refresher: refresher,
	}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if !claims.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "auth")

		raw, fromCookie := accessToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil {
			if !fromCookie || !errors.Is(err, jwt.ErrTokenExpired) || m.Refresher == nil {
				if fromCookie {
					clearAuthCookies(c)
				}
				l.Warn("auth_rejected", "status", 401, "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			claims, err = m.refresh(c, raw)
			if err != nil {
				clearAuthCookies(c)
				l.Warn("auth_refresh_failed", "status", 401, "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
			}
		}

		if validator != nil {
			if err := validator(claims); err != nil {
				return err
			}
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxRole, claims.Role)
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) refresh(c echo.Context, expiredAccess string) (*tokens.AccessClaims, error) {
	refreshCookie, err := c.Cookie(tokens.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		return nil, errors.New("refresh token missing")
	}

	resp, err := m.Refresher.RefreshTokens(c.Request().Context(), refreshCookie.Value, expiredAccess)
	if err != nil {
		return nil, err
	}

	claims, err := tokens.AccessClaimsFromToken(resp.AccessToken, m.JWTSecret)
	if err != nil {
		return nil, err
	}

	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, resp.AccessToken, "/", time.Unix(resp.AccessExp, 0)))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, resp.RefreshToken, "/", time.Unix(resp.RefreshExp, 0)))
	return claims, nil
}

// accessToken prefers an Authorization bearer header over the session cookie.
func accessToken(c echo.Context) (string, bool) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if v, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(v), false
		}
	}
	if ck, err := c.Cookie(tokens.AccessCookie); err == nil {
		return ck.Value, true
	}
	return "", false
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/"))
}
