package render

import (
	"errors"
	"testing"

	"github.com/John-Robertt/loonsub/internal/filter"
	"github.com/John-Robertt/loonsub/internal/model"
)

func TestRender_LoonTarget(t *testing.T) {
	nodes := []model.Node{
		{Type: model.TypeSS, Name: "A", Server: "h", Port: 1, Cipher: "aes-256-gcm", Password: "p"},
		{Type: model.TypeTrojan, Name: "B", Server: "t", Port: 443, Password: "s", SNI: "t"},
	}
	got, err := Render(TargetLoon, nodes, filter.None(), &collectWarner{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, err := NodeLines(nodes, filter.None(), &collectWarner{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("Render(TargetLoon)=%q, NodeLines=%q", got, want)
	}
}

func TestRender_UnsupportedTarget(t *testing.T) {
	_, err := Render(Target("surge"), nil, filter.None(), nil)
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %T: %v", err, err)
	}
	if re.AppError.Code != "UNSUPPORTED_TARGET" {
		t.Fatalf("code=%q, want=%q", re.AppError.Code, "UNSUPPORTED_TARGET")
	}
	if re.AppError.Stage != "render" {
		t.Fatalf("stage=%q, want=%q", re.AppError.Stage, "render")
	}
}
