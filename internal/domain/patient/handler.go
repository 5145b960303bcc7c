package patient

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/apierror"
	"github.com/careorbit/clinic/internal/platform/auth"
	"github.com/careorbit/clinic/internal/platform/reporting"
	"github.com/careorbit/clinic/pkg/pagination"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/patients", auth.RequireRole(domain.RoleAdmin))
	admin.POST("", h.Register)
	admin.GET("", h.List)
	admin.GET("/stats", h.Stats)
	admin.GET("/export", h.Export)
	admin.POST("/search", h.Lookup)
	admin.GET("/by-phone", h.FindByPhone)
	admin.GET("/by-name", h.FindByName)
	admin.PATCH("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)

	api.GET("/patients/:id", h.Get, auth.RequireRole(domain.RoleAdmin, domain.RoleDoctor))
	api.GET("/doctor/patients/search", h.DoctorSearch, auth.RequireRole(domain.RoleDoctor))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apierror.BadRequest("invalid patient id")
	}
	return id, nil
}

// withHistory reads ?history=, defaulting to true.
func withHistory(c echo.Context) bool {
	v, err := strconv.ParseBool(c.QueryParam("history"))
	return err != nil || v
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	pt, err := h.svc.Register(c.Request().Context(), auth.Principal(c), in)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusCreated, pt)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pt, err := h.svc.FindByID(c.Request().Context(), auth.Principal(c), id, withHistory(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) FindByPhone(c echo.Context) error {
	patients, err := h.svc.FindByPhone(c.Request().Context(), auth.Principal(c), c.QueryParam("phone"), withHistory(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patients": patients, "count": len(patients)})
}

func (h *Handler) FindByName(c echo.Context) error {
	patients, err := h.svc.FindByName(c.Request().Context(), auth.Principal(c), c.QueryParam("name"), withHistory(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patients": patients, "count": len(patients)})
}

type lookupRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

func (h *Handler) Lookup(c echo.Context) error {
	var req lookupRequest
	if err := c.Bind(&req); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	pt, err := h.svc.Lookup(c.Request().Context(), auth.Principal(c), req.Phone, req.Name)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	pt, err := h.svc.Update(c.Request().Context(), auth.Principal(c), id, in)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), auth.Principal(c), id); err != nil {
		return apierror.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// parseOrder accepts asc/desc and the 1/-1 form; the default is descending.
func parseOrder(s string) (desc bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "-1":
		return true, true
	case "asc", "1":
		return false, true
	}
	return false, false
}

func (h *Handler) List(c echo.Context) error {
	desc, ok := parseOrder(c.QueryParam("order"))
	if !ok {
		return apierror.BadRequest("order must be asc or desc")
	}
	page := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), auth.Principal(c), ListParams{
		Page:    page.Page,
		PerPage: page.PerPage,
		Search:  c.QueryParam("search"),
		Gender:  c.QueryParam("gender"),
		Sort:    c.QueryParam("sort"),
		Desc:    desc,
	})
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page))
}

func (h *Handler) DoctorSearch(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return apierror.BadRequest("search term is required")
	}
	page := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), auth.Principal(c), ListParams{
		Page:    page.Page,
		PerPage: page.PerPage,
		Search:  q,
		Sort:    "name",
	})
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, page))
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context(), auth.Principal(c))
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Export(c echo.Context) error {
	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		return apierror.BadRequest("format must be csv or xlsx")
	}
	table, err := h.svc.Export(c.Request().Context(), auth.Principal(c))
	if err != nil {
		return apierror.From(err)
	}

	filename := fmt.Sprintf("patients_export_%s.%s", time.Now().Format("20060102"), format)
	res := c.Response()
	res.Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	if format == "xlsx" {
		res.Header().Set(echo.HeaderContentType, mimeXLSX)
		res.WriteHeader(http.StatusOK)
		return reporting.WriteXLSX(res, "Patients", table)
	}
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	return reporting.WriteCSV(res, table)
}
