package profile

import (
	"errors"
	"testing"

	"github.com/John-Robertt/loonsub/internal/filter"
	"github.com/John-Robertt/loonsub/internal/model"
)

const srcURL = "https://example.com/profile.yaml"

func TestParseProfileYAML_Minimal(t *testing.T) {
	spec, err := ParseProfileYAML(srcURL, "version: 1\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.TemplateURL != "" || spec.NameSeparator != "" {
		t.Fatalf("spec=%+v", spec)
	}
	// No filter section means None, which keeps everything.
	out, err := filter.Apply([]model.Node{{Type: model.TypeSS, Name: "a"}}, spec.Filter)
	if err != nil {
		t.Fatalf("filter should be usable: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len=%d, want=1", len(out))
	}
}

func TestParseProfileYAML_Full(t *testing.T) {
	content := `
version: 1
template: https://example.com/loon.conf
name_separator: " | "
filter:
  include: ["^HK"]
  exclude: ["expire"]
  types: [ss, VMess]
`
	spec, err := ParseProfileYAML(srcURL, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.TemplateURL != "https://example.com/loon.conf" {
		t.Fatalf("template=%q", spec.TemplateURL)
	}
	if spec.NameSeparator != " | " {
		t.Fatalf("sep=%q", spec.NameSeparator)
	}

	nodes := []model.Node{
		{Type: model.TypeSS, Name: "HK 01"},
		{Type: model.TypeSS, Name: "HK expire"},
		{Type: model.TypeTrojan, Name: "HK 02"},
		{Type: model.TypeVMess, Name: "US 01"},
	}
	out, err := filter.Apply(nodes, spec.Filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Name != "HK 01" {
		t.Fatalf("filtered=%v", out)
	}
}

func TestParseProfileYAML_BadVersion(t *testing.T) {
	_, err := ParseProfileYAML(srcURL, "version: 2\n")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Code != "PROFILE_VALIDATE_ERROR" {
		t.Fatalf("code=%q", pe.AppError.Code)
	}
}

func TestParseProfileYAML_UnknownKeyRejected(t *testing.T) {
	_, err := ParseProfileYAML(srcURL, "version: 1\nfliter: {}\n")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Code != "PROFILE_PARSE_ERROR" {
		t.Fatalf("code=%q", pe.AppError.Code)
	}
}

func TestParseProfileYAML_BadRegex(t *testing.T) {
	_, err := ParseProfileYAML(srcURL, "version: 1\nfilter:\n  include: [\"(\"]\n")
	if err == nil {
		t.Fatalf("expected error for invalid regex")
	}
}

func TestParseProfileYAML_UnknownType(t *testing.T) {
	_, err := ParseProfileYAML(srcURL, "version: 1\nfilter:\n  types: [socks5]\n")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Code != "PROFILE_VALIDATE_ERROR" {
		t.Fatalf("code=%q", pe.AppError.Code)
	}
}
