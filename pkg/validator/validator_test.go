package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	SecretID string `json:"dbSecretId" validate:"required"`
	Server   string `json:"dbServer" validate:"required"`
	Database string `json:"database" validate:"required,sqlident"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		SecretID: "prod/rds",
		Server:   "db.example.com",
		Database: "SqlToCwDemo1",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		SecretID: "",
		Server:   "db.example.com",
		Database: "demo]; drop database master; --",
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d", len(vErrs))
	}

	foundDatabase := false
	for _, v := range vErrs {
		if v.Field == "database" && v.Tag == "sqlident" {
			foundDatabase = true
		}
	}

	if !foundDatabase {
		t.Fatal("expected database field to fail the sqlident rule")
	}
}

func TestIsSQLIdentifier(t *testing.T) {
	valid := []string{"SqlToCwTable", "_staging", "db_2024", "countItems"}
	for _, name := range valid {
		if !IsSQLIdentifier(name) {
			t.Fatalf("expected %q to be a valid identifier", name)
		}
	}

	invalid := []string{"", "1demo", "demo-db", "demo db", "demo]", "a'b", "x;y"}
	for _, name := range invalid {
		if IsSQLIdentifier(name) {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("sqlpulse", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "sqlpulse"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"sqlpulse"`
	}

	if err := ValidateStruct(custom{Value: "sqlpulse"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
