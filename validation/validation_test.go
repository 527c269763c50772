package validation

import (
	"strings"
	"testing"

	"github.com/Montinou/interview-companion-sub000/errors"
)

type createRequest struct {
	Title         string `json:"title" validate:"required,max=255"`
	CandidateName string `json:"candidate_name" validate:"required"`
	Status        string `json:"status" validate:"omitempty,oneof=created capturing completed failed"`
}

func TestValidateAcceptsValidStruct(t *testing.T) {
	req := createRequest{Title: "backend screen", CandidateName: "Jordan"}
	if err := Validate(req); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateReportsAllInvalidFields(t *testing.T) {
	err := Validate(createRequest{Status: "paused"})
	if err == nil {
		t.Fatal("want error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("error is not an AppError: %v", err)
	}
	msg := appErr.Message
	for _, want := range []string{"title", "candidate_name", "status"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing field %s", msg, want)
		}
	}
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	err := Validate(createRequest{Title: "x"})
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "candidate_name") {
		t.Errorf("error %q does not use json field name", err.Error())
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"CandidateName": "candidate_name",
		"Title":         "title",
		"ID":            "i_d",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
