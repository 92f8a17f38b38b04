package domain_test

import (
	"path/filepath"
	"testing"

	"go.trai.ch/mallard/internal/core/domain"
)

func TestLayoutPaths(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "DefaultMallardPath",
			got:      domain.DefaultMallardPath(),
			expected: ".mallard",
		},
		{
			name:     "DefaultCachePath",
			got:      domain.DefaultCachePath(),
			expected: filepath.Join(".mallard", "cache"),
		},
		{
			name:     "DefaultMetricsPath",
			got:      domain.DefaultMetricsPath(),
			expected: filepath.Join(".mallard", "metrics.prom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}
