package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/incidentd/internal/auth"
)

const tenantContextKey = "incidentd.tenant"

// requireAPIKey authenticates the request with an API key presented in
// the X-API-Key header or as an Authorization bearer token. Missing,
// unknown and deactivated keys all get the same 401.
func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get("X-API-Key")
		if key == "" {
			if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
				key = strings.TrimPrefix(h, "Bearer ")
			}
		}

		tctx, err := s.resolver.Resolve(c.Request().Context(), key)
		if err != nil {
			s.logger.Debug("authentication failed",
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
		}

		c.Set(tenantContextKey, tctx)
		return next(c)
	}
}

// tenantContext returns the authenticated caller set by requireAPIKey.
func tenantContext(c echo.Context) *auth.TenantContext {
	tctx, _ := c.Get(tenantContextKey).(*auth.TenantContext)
	return tctx
}
