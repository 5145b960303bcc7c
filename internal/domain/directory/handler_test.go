package directory

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/auth"
)

func newCtx(e *echo.Echo, target string, p domain.Principal) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_ListDoctors(t *testing.T) {
	f := newFixture(t)
	id := f.addDoctor("dr_smith", true, 2)
	f.repo.doctors[id].PasswordHash = "$2a$10$secret"
	h := NewHandler(f.svc)

	c, rec := newCtx(echo.New(), "/departments/"+f.dept.String()+"/doctors", admin)
	c.SetParamNames("id")
	c.SetParamValues(f.dept.String())

	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("ListDoctors: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"load":"Light"`) || !strings.Contains(body, `"current_load":2`) {
		t.Errorf("load missing from response: %s", body)
	}
	if strings.Contains(body, "secret") || strings.Contains(body, "password") {
		t.Errorf("password hash leaked: %s", body)
	}
}

func TestHandler_ListDoctors_BadID(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	c, _ := newCtx(echo.New(), "/departments/nope/doctors", admin)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.ListDoctors(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListDoctors_UnknownDepartment(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	missing := uuid.New().String()
	c, _ := newCtx(echo.New(), "/departments/"+missing+"/doctors", admin)
	c.SetParamNames("id")
	c.SetParamValues(missing)

	err := h.ListDoctors(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListDepartments(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	c, rec := newCtx(echo.New(), "/departments", admin)

	if err := h.ListDepartments(c); err != nil {
		t.Fatalf("ListDepartments: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"department_name":"Cardiology"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
