package account

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/apierror"
	"github.com/careorbit/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterPublicRoutes mounts the login endpoints, which run before
// authentication. mw is applied to both, typically a stricter rate limit.
func (h *Handler) RegisterPublicRoutes(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.POST("/auth/admin/login", h.login(domain.RoleAdmin), mw...)
	g.POST("/auth/doctor/login", h.login(domain.RoleDoctor), mw...)
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth", auth.RequireRole(domain.RoleAdmin, domain.RoleDoctor))
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
}

func (h *Handler) login(role domain.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := c.Bind(&req); err != nil {
			return apierror.BadRequest("invalid request body")
		}
		sess, err := h.svc.Login(c.Request().Context(), role, req.Username, req.Password)
		if err != nil {
			return apierror.From(err)
		}
		return c.JSON(http.StatusOK, sess)
	}
}

func (h *Handler) Logout(c echo.Context) error {
	claims, ok := auth.ClaimsFromContext(c.Request().Context())
	if !ok {
		return apierror.BadRequest("logout requires a bearer token")
	}
	if err := h.svc.Logout(c.Request().Context(), auth.Principal(c), claims.ID, claims.ExpiresAt.Time); err != nil {
		return apierror.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	prof, err := h.svc.Me(c.Request().Context(), auth.Principal(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, prof)
}
