package state

import (
	"testing"
)

func TestInstanceStatus_String(t *testing.T) {
	tests := []struct {
		name     string
		status   InstanceStatus
		expected string
	}{
		{
			name:     "Queued status",
			status:   StatusQueued,
			expected: "queued",
		},
		{
			name:     "Running status",
			status:   StatusRunning,
			expected: "running",
		},
		{
			name:     "Completed status",
			status:   StatusCompleted,
			expected: "completed",
		},
		{
			name:     "Failed status",
			status:   StatusFailed,
			expected: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.status.String()
			if result != tt.expected {
				t.Errorf("String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestInstanceStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   InstanceStatus
		expected bool
	}{
		{
			name:     "Queued is not terminal",
			status:   StatusQueued,
			expected: false,
		},
		{
			name:     "Running is not terminal",
			status:   StatusRunning,
			expected: false,
		},
		{
			name:     "Completed is terminal",
			status:   StatusCompleted,
			expected: true,
		},
		{
			name:     "Failed is terminal",
			status:   StatusFailed,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.status.IsTerminal()
			if result != tt.expected {
				t.Errorf("IsTerminal() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestInstanceStatus_IsValid(t *testing.T) {
	for _, status := range AllStatuses {
		if !status.IsValid() {
			t.Errorf("IsValid() = false for known status %v", status)
		}
	}
	if InstanceStatus("pending").IsValid() {
		t.Error("IsValid() = true for unknown status")
	}
	if InstanceStatus("").IsValid() {
		t.Error("IsValid() = true for empty status")
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     InstanceStatus
		to       InstanceStatus
		expected bool
	}{
		{
			name:     "Valid: Queued to Running",
			from:     StatusQueued,
			to:       StatusRunning,
			expected: true,
		},
		{
			name:     "Valid: Queued to Failed",
			from:     StatusQueued,
			to:       StatusFailed,
			expected: true,
		},
		{
			name:     "Valid: Running to Completed",
			from:     StatusRunning,
			to:       StatusCompleted,
			expected: true,
		},
		{
			name:     "Valid: Running to Failed",
			from:     StatusRunning,
			to:       StatusFailed,
			expected: true,
		},
		{
			name:     "Valid: Failed to Queued on restart",
			from:     StatusFailed,
			to:       StatusQueued,
			expected: true,
		},
		{
			name:     "Invalid: Queued to Completed",
			from:     StatusQueued,
			to:       StatusCompleted,
			expected: false,
		},
		{
			name:     "Invalid: Completed to Queued",
			from:     StatusCompleted,
			to:       StatusQueued,
			expected: false,
		},
		{
			name:     "Invalid: Completed to Failed",
			from:     StatusCompleted,
			to:       StatusFailed,
			expected: false,
		},
		{
			name:     "Invalid: Running to Queued",
			from:     StatusRunning,
			to:       StatusQueued,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%v, %v) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}
