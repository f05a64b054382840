package config

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestValidateWithDetails_ReturnsFieldErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	cfg.Log.Level = "verbose"

	err := ValidateWithDetails(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	details, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(details) < 2 {
		t.Errorf("expected at least 2 field errors, got %d: %v", len(details), details)
	}
}

func TestValidateWithDetails_ValidConfig(t *testing.T) {
	if err := ValidateWithDetails(DefaultConfig()); err != nil {
		t.Errorf("expected no validation error, got %v", err)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "Config.DataDir", Message: "this field is required", Value: ""},
	}
	msg := errs.Error()
	if msg == "" {
		t.Error("expected non-empty error message")
	}
}

func TestValidationErrors_Error_Empty(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "no validation errors" {
		t.Errorf("unexpected message for empty ValidationErrors: %q", errs.Error())
	}
}

func TestFormatValidationError(t *testing.T) {
	type target struct {
		Name string `validate:"required"`
		Port int    `validate:"min=1,max=65535"`
		Mode string `validate:"oneof=a b c"`
	}

	err := validate.Struct(target{Port: 0, Mode: "z"})
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		t.Fatalf("expected validator.ValidationErrors, got %T", err)
	}

	seen := make(map[string]string)
	for _, fe := range fieldErrs {
		seen[fe.Field()] = formatValidationError(fe)
	}

	if seen["Name"] != "this field is required" {
		t.Errorf("unexpected message for Name: %q", seen["Name"])
	}
	if seen["Mode"] != "must be one of [a b c]" {
		t.Errorf("unexpected message for Mode: %q", seen["Mode"])
	}
}
