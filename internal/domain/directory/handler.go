package directory

import (
	"net/http"

	"github.com/google/uuid"
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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/departments", auth.RequireRole(domain.RoleAdmin))
	admin.GET("", h.ListDepartments)
	admin.GET("/:id/doctors", h.ListDoctors)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	depts, err := h.svc.ListDepartments(c.Request().Context(), auth.Principal(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"departments": depts,
		"count":       len(depts),
	})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierror.BadRequest("invalid department id")
	}
	docs, err := h.svc.ListDoctors(c.Request().Context(), auth.Principal(c), id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"department_id": id,
		"doctors":       docs,
		"count":         len(docs),
	})
}
