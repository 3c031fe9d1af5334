package validator

import "testing"

type sample struct {
	Name  string  `validate:"required"`
	Score float64 `validate:"gte=0,lte=1"`
}

func TestValidate(t *testing.T) {
	v := New()
	if err := v.Validate(sample{Name: "ok", Score: 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Validate(sample{Score: 0.5}); err == nil {
		t.Fatal("expected required error")
	}
	if err := v.Validate(sample{Name: "x", Score: 1.5}); err == nil {
		t.Fatal("expected range error")
	}
	if err := v.Var("critical", "oneof=critical high medium low"); err != nil {
		t.Fatalf("Var: %v", err)
	}
}
