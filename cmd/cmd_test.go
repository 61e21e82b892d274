package cmd

import (
	"testing"

	"github.com/modseek/modseek/pkg/store"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		target store.Target
		want   string
	}{
		{
			name:   "catalog name wins",
			target: store.Target{Path: "skyrimspecialedition", Name: "Skyrim Special Edition"},
			want:   "Skyrim Special Edition",
		},
		{
			name:   "path fallback is title cased",
			target: store.Target{Path: "mount_and_blade"},
			want:   "Mount And Blade",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(tt.target); got != tt.want {
				t.Errorf("displayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBlockID(t *testing.T) {
	if _, err := parseBlockID(""); err == nil {
		t.Error("expected error for empty argument")
	}
	if _, err := parseBlockID("abc"); err == nil {
		t.Error("expected error for non-numeric argument")
	}
	id, err := parseBlockID("12345")
	if err != nil {
		t.Fatalf("parseBlockID() error: %v", err)
	}
	if id != 12345 {
		t.Errorf("parseBlockID() = %d, want 12345", id)
	}
}
