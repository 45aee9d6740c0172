package health

import (
	"context"
	"errors"
	"testing"
	"time"
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
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorst(t *testing.T) {
	tests := []struct {
		name string
		in   []Status
		want Status
	}{
		{"none", nil, StatusHealthy},
		{"healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusUnhealthy, StatusDegraded, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Worst(tt.in...); got != tt.want {
				t.Errorf("Worst(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResultConstructors(t *testing.T) {
	cause := errors.New("disk gone")

	tests := []struct {
		name    string
		result  Result
		status  Status
		message string
		err     error
	}{
		{"healthy", Healthy("serving"), StatusHealthy, "serving", nil},
		{"degraded", Degraded("stale"), StatusDegraded, "stale", nil},
		{"unhealthy", Unhealthy("disposed", cause), StatusUnhealthy, "disposed", cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.status {
				t.Errorf("Status = %v, want %v", tt.result.Status, tt.status)
			}
			if tt.result.Message != tt.message {
				t.Errorf("Message = %q, want %q", tt.result.Message, tt.message)
			}
			if tt.result.Error != tt.err {
				t.Errorf("Error = %v, want %v", tt.result.Error, tt.err)
			}
			if tt.result.Timestamp.IsZero() {
				t.Error("Timestamp is zero")
			}
		})
	}
}

func TestResult_With(t *testing.T) {
	r := Healthy("ok").
		WithDetails(map[string]any{"entries": 3}).
		WithDuration(25 * time.Millisecond)

	if r.Details["entries"] != 3 {
		t.Errorf("Details[entries] = %v, want 3", r.Details["entries"])
	}
	if r.Duration != 25*time.Millisecond {
		t.Errorf("Duration = %v, want 25ms", r.Duration)
	}
}

func TestCheckerFunc(t *testing.T) {
	checker := NewCheckerFunc("upstream", func(ctx context.Context) Result {
		if err := ctx.Err(); err != nil {
			return Unhealthy("cancelled", err)
		}
		return Healthy("reachable")
	})

	if checker.Name() != "upstream" {
		t.Errorf("Name() = %q, want upstream", checker.Name())
	}
	if got := checker.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Check() = %v, want healthy", got.Status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := checker.Check(ctx); got.Status != StatusUnhealthy {
		t.Errorf("Check(cancelled) = %v, want unhealthy", got.Status)
	}
}
