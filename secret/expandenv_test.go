package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict_MissingVarErrors(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandEnvStrict("a=${PRESENT} b=${MISSING_B} c=${MISSING_A} d=${MISSING_B}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("expected ErrMissingEnv, got: %v", err)
	}
	if !strings.HasSuffix(err.Error(), ": MISSING_A, MISSING_B") {
		t.Fatalf("expected sorted unique names, got: %v", err)
	}
}

func TestExpand(t *testing.T) {
	env := map[string]string{"X": "y", "EMPTY": "", "TABLE": "templates"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${X}", "y"},
		{"$X-$X", "y-y"},
		{"$UNSET", ""},
		{"$$${X}", "$y"},
		{"cost: $$5", "cost: $5"},
		{"${UNSET:-fallback}", "fallback"},
		{"${EMPTY:-fallback}", "fallback"},
		{"${EMPTY}", ""},
		{"${TABLE:-other}-cache", "templates-cache"},
		{"trailing $", "trailing $"},
		{"${unterminated", "${unterminated"},
		{"${1BAD}", "${1BAD}"},
		{"100$ off", "100$ off"},
	}

	for _, tt := range tests {
		got, err := Expand(tt.in, lookup)
		if err != nil {
			t.Errorf("Expand(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
