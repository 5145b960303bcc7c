package visit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/platform/auth"
)

func newRequest(method, target, body string, p domain.Principal) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestHandler_Assign(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"patient_id":"` + f.patientID.String() + `","doctor_id":"` + f.doctor.ID.String() +
		`","department_id":"` + f.department.String() + `","reason_for_visit":"Fever"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/visits", body, f.admin), rec)

	if err := h.Assign(c); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var v Visit
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusAssigned || v.ReasonForVisit != "Fever" {
		t.Errorf("unexpected visit %+v", v)
	}
}

func TestHandler_Assign_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"patient_id":"` + f.department.String() + `","doctor_id":"` + f.doctor.ID.String() +
		`","department_id":"` + f.department.String() + `"}`
	c := e.NewContext(newRequest(http.MethodPost, "/visits", body, f.admin), httptest.NewRecorder())

	if code := httpCode(t, h.Assign(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_MyWorklist(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()
	f.assign(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/doctor/worklist?active=true", "", f.doctor), rec)
	if err := h.MyWorklist(c); err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Count  int             `json:"count"`
		Visits []*WorklistItem `json:"visits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Visits[0].PatientID != "PT0001" || resp.Visits[0].Age != 33 {
		t.Errorf("unexpected worklist %+v", resp)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	c := e.NewContext(newRequest(http.MethodGet, "/visits/nope", "", f.admin), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	if code := httpCode(t, h.GetDetails(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_AttachAndEditPrescription(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()
	v := f.assign(t)

	c := e.NewContext(newRequest(http.MethodPost, "/", `{"symptoms":"Headache"}`, f.doctor), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	if code := httpCode(t, h.AttachPrescription(c)); code != http.StatusBadRequest {
		t.Errorf("missing fields: expected 400, got %d", code)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodPost, "/",
		`{"symptoms":"Headache","diagnosis":"Migraine","medications":"Sumatriptan"}`, f.doctor), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	if err := h.AttachPrescription(c); err != nil {
		t.Fatalf("AttachPrescription: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodPut, "/",
		`{"symptoms":"Headache","diagnosis":"Tension headache","medications":"Ibuprofen"}`, f.doctor), rec)
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	if err := h.EditPrescription(c); err != nil {
		t.Fatalf("EditPrescription: %v", err)
	}
	var entry AuditEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.OriginalData.Diagnosis != "Migraine" || entry.NewData.Diagnosis != "Tension headache" {
		t.Errorf("unexpected audit entry %+v", entry)
	}
}

func TestHandler_StartForbiddenForOtherDoctor(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()
	v := f.assign(t)

	c := e.NewContext(newRequest(http.MethodPost, "/", "", f.otherDoc), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(v.ID.String())
	if code := httpCode(t, h.Start(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}
