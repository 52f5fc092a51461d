package agent

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type sessionResponse struct {
	IsAuthenticated bool       `json:"isAuthenticated"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) versionHandler(c echo.Context) error {
	return c.String(http.StatusOK, s.version)
}

func (s *Server) activity(c echo.Context) error {
	if s.idle != nil {
		s.idle.Reset()
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) sessionHandler(c echo.Context) error {
	ok, err := s.session.IsAuthenticated(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	res := sessionResponse{IsAuthenticated: ok}
	if ok {
		if expiry, err := s.session.CookieExpiry(); err == nil {
			res.ExpiresAt = &expiry
		}
	}
	return c.JSON(http.StatusOK, res)
}
