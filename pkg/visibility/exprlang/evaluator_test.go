package exprlang

import (
	"testing"

	"github.com/goliatone/go-formflow/pkg/visibility"
)

func TestEvaluatorMatchesFormRules(t *testing.T) {
	t.Parallel()

	eval := New()
	cases := []struct {
		rule   string
		values map[string]any
		want   bool
	}{
		{`attendingWithGuest == "yes" && guestName == ""`, map[string]any{"attendingWithGuest": "yes", "guestName": ""}, true},
		{`attendingWithGuest == "yes" && guestName == ""`, map[string]any{"attendingWithGuest": "no", "guestName": ""}, false},
		{`attendingWithGuest == "yes" && guestName == ""`, map[string]any{"attendingWithGuest": "yes", "guestName": "Grace"}, false},
		{`applyingForPosition in ["Developer", "Designer"]`, map[string]any{"applyingForPosition": "Designer"}, true},
		{`age > 17`, map[string]any{"age": 21.0}, true},
	}
	for _, tc := range cases {
		got, err := eval.Eval("field", tc.rule, visibility.Context{Values: tc.values})
		if err != nil {
			t.Fatalf("Eval(%q): %v", tc.rule, err)
		}
		if got != tc.want {
			t.Fatalf("Eval(%q) = %v, want %v", tc.rule, got, tc.want)
		}
	}
}

func TestEvaluatorExtras(t *testing.T) {
	t.Parallel()

	ok, err := New().Eval("field", `extras.mode == "strict"`, visibility.Context{
		Extras: map[string]any{"mode": "strict"},
	})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !ok {
		t.Fatalf("expected extras rule to hold")
	}
}

func TestEvaluatorRejectsInvalidRules(t *testing.T) {
	t.Parallel()

	if err := New().Check(`a ==`); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestEvaluatorEmptyRuleHolds(t *testing.T) {
	t.Parallel()

	ok, err := New().Eval("field", "", visibility.Context{})
	if err != nil || !ok {
		t.Fatalf("Eval(empty) = %v, %v; want true, nil", ok, err)
	}
}
