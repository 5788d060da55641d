package health

import (
	"context"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestWorse(t *testing.T) {
	if got := worse(StatusHealthy, StatusDegraded); got != StatusDegraded {
		t.Errorf("worse(healthy, degraded) = %v", got)
	}
	if got := worse(StatusUnhealthy, StatusDegraded); got != StatusUnhealthy {
		t.Errorf("worse(unhealthy, degraded) = %v", got)
	}
}

func TestResult_WithDetails(t *testing.T) {
	r := Healthy("ok").WithDetails(map[string]any{"a": 1})
	r2 := r.WithDetails(map[string]any{"b": 2})

	if len(r.Details) != 1 {
		t.Errorf("original details mutated: %v", r.Details)
	}
	if r2.Details["a"] != 1 || r2.Details["b"] != 2 {
		t.Errorf("merged details = %v", r2.Details)
	}
}

func TestUnhealthy_CarriesError(t *testing.T) {
	r := Unhealthy("down", ErrCheckFailed)
	if r.Status != StatusUnhealthy || r.Error != ErrCheckFailed {
		t.Errorf("Unhealthy() = %+v", r)
	}
	if r.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestCheckerFunc(t *testing.T) {
	c := NewCheckerFunc("fn", func(context.Context) Result { return Degraded("slow") })
	if c.Name() != "fn" {
		t.Errorf("Name() = %q", c.Name())
	}
	if r := c.Check(context.Background()); r.Status != StatusDegraded || r.Message != "slow" {
		t.Errorf("Check() = %+v", r)
	}
}
