package visit

import (
	"net/http"
	"strconv"

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
	admin := api.Group("", auth.RequireRole(domain.RoleAdmin))
	admin.POST("/visits", h.Assign)
	admin.GET("/doctors/:id/worklist", h.DoctorWorklist)

	doctor := api.Group("", auth.RequireRole(domain.RoleDoctor))
	doctor.GET("/doctor/worklist", h.MyWorklist)
	doctor.POST("/visits/:id/start", h.Start)
	doctor.POST("/visits/:id/prescription", h.AttachPrescription)
	doctor.PUT("/visits/:id/prescription", h.EditPrescription)

	read := api.Group("", auth.RequireRole(domain.RoleAdmin, domain.RoleDoctor))
	read.GET("/visits/:id", h.GetDetails)
	read.GET("/visits/:id/prescription", h.GetPrescription)
	read.GET("/visits/:id/audit", h.AuditTrail)
	read.GET("/patients/:id/history", h.History)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apierror.BadRequest("invalid id")
	}
	return id, nil
}

func (h *Handler) Assign(c echo.Context) error {
	var in AssignInput
	if err := c.Bind(&in); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	v, err := h.svc.Assign(c.Request().Context(), auth.Principal(c), in)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) MyWorklist(c echo.Context) error {
	p := auth.Principal(c)
	return h.worklist(c, p.ID)
}

func (h *Handler) DoctorWorklist(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	return h.worklist(c, id)
}

func (h *Handler) worklist(c echo.Context, doctorID uuid.UUID) error {
	activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
	items, err := h.svc.ListForDoctorToday(c.Request().Context(), auth.Principal(c), doctorID, activeOnly)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"visits":    items,
		"count":     len(items),
	})
}

func (h *Handler) Start(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.StartVisit(c.Request().Context(), auth.Principal(c), id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) AttachPrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in PrescriptionInput
	if err := c.Bind(&in); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	v, err := h.svc.AttachPrescription(c.Request().Context(), auth.Principal(c), id, in)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) EditPrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in PrescriptionInput
	if err := c.Bind(&in); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	entry, err := h.svc.EditPrescription(c.Request().Context(), auth.Principal(c), id, in)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) GetDetails(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDetails(c.Request().Context(), auth.Principal(c), id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rx, err := h.svc.GetPrescription(c.Request().Context(), auth.Principal(c), id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, rx)
}

func (h *Handler) AuditTrail(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.AuditTrail(c.Request().Context(), auth.Principal(c), id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"visit_id": id, "audit_history": entries})
}

func (h *Handler) History(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	history, err := h.svc.HistoryForPatient(c.Request().Context(), auth.Principal(c), id)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patient_id": id, "history": history})
}
