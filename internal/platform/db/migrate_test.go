package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".sql") {
			t.Errorf("unexpected file in migrations: %s", e.Name())
		}
		body, err := fs.ReadFile(Migrations(), e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		s := string(body)
		if !strings.Contains(s, "-- +goose Up") || !strings.Contains(s, "-- +goose Down") {
			t.Errorf("%s is missing goose Up/Down annotations", e.Name())
		}
	}
}

func TestMigrations_SchemaConstraints(t *testing.T) {
	body, err := fs.ReadFile(Migrations(), "00001_clinic_schema.sql")
	if err != nil {
		t.Fatalf("read schema migration: %v", err)
	}
	s := string(body)
	for _, want := range []string{
		"CONSTRAINT " + PatientIDKey,
		"INDEX " + PatientIdentityKey,
		"WHERE aadhaar_number IS NOT NULL",
		"CREATE TABLE prescription_audit",
		"CHECK (status IN ('assigned', 'in_progress', 'completed'))",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("schema migration missing %q", want)
		}
	}
}
