package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/apierror"
	"github.com/careorbit/clinic/internal/platform/auth"
	"github.com/careorbit/clinic/internal/platform/db"
	"github.com/careorbit/clinic/pkg/derive"
)

// MeasureDefinition is a canned clinic report. Parameters are bound to
// $1..$n in order and are all YYYY-MM-DD dates.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"-"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "visits-by-status",
		Name:        "Visits by Status",
		Description: "Number of visits in each status",
		SQL:         `SELECT status, COUNT(*) AS total FROM visit GROUP BY status ORDER BY status`,
		Parameters:  []string{},
	},
	{
		ID:          "visits-by-department",
		Name:        "Visits by Department",
		Description: "Number of visits per department, with visits to removed departments as Unknown",
		SQL: `SELECT COALESCE(d.department_name, 'Unknown') AS department, COUNT(*) AS total
			FROM visit v LEFT JOIN department d ON d.id = v.department_id
			GROUP BY 1 ORDER BY total DESC`,
		Parameters: []string{},
	},
	{
		ID:          "registrations-since",
		Name:        "Registrations Since",
		Description: "Patients registered on or after a date",
		SQL:         `SELECT COUNT(*) AS total FROM patient WHERE created_at >= $1::date`,
		Parameters:  []string{"since"},
	},
	{
		ID:          "follow-ups-due",
		Name:        "Follow-ups Due",
		Description: "Completed visits whose follow-up date is on or before a date",
		SQL: `SELECT p.patient_id, p.name, p.contact_number, v.follow_up_date
			FROM visit v JOIN patient p ON p.id = v.patient_id
			WHERE v.follow_up_date IS NOT NULL AND v.follow_up_date <= $1::date
			ORDER BY v.follow_up_date, p.patient_id`,
		Parameters: []string{"before"},
	},
	{
		ID:          "prescription-edits",
		Name:        "Prescription Edits",
		Description: "Audited prescription edits and the number of visits they touched",
		SQL:         `SELECT COUNT(*) AS total_edits, COUNT(DISTINCT visit_id) AS visits_edited FROM prescription_audit`,
		Parameters:  []string{},
	},
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}

// Handler serves the admin reporting API.
type Handler struct {
	db     db.Querier
	logger zerolog.Logger
}

func NewHandler(q db.Querier, logger zerolog.Logger) *Handler {
	return &Handler{db: q, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	g.GET("/reports", h.ListMeasures)
	g.GET("/reports/:id", h.EvaluateMeasure)
	g.GET("/db-stats", h.DBStats)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	args := make([]interface{}, 0, len(measure.Parameters))
	for _, p := range measure.Parameters {
		v := c.QueryParam(p)
		if _, err := derive.ParseDate(v); err != nil {
			return apierror.From(domain.Invalid(p, "must be a YYYY-MM-DD date"))
		}
		params[p] = v
		args = append(args, v)
	}

	results, err := h.execute(c.Request().Context(), measure.SQL, args...)
	if err != nil {
		h.logger.Error().Err(err).Str("measure", measure.ID).Msg("measure evaluation failed")
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	})
}

func (h *Handler) DBStats(c echo.Context) error {
	stats, err := CollectDBStats(c.Request().Context(), h.db, db.Tables)
	if err != nil {
		return apierror.From(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// execute runs a query and returns each row as a column-name map.
func (h *Handler) execute(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, db.MapError(fmt.Errorf("run measure: %w", err))
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, db.MapError(fmt.Errorf("read measure row: %w", err))
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(fmt.Errorf("read measure rows: %w", err))
	}
	return results, nil
}
