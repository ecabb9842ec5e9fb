package pipeline

import (
	"slices"
	"testing"

	"github.com/matzehuels/poet/pkg/errors"
	"github.com/matzehuels/poet/pkg/manifest"
)

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantGroup string
		wantCode  errors.Code
	}{
		{"main by default", Options{Packages: []string{"x"}}, manifest.MainGroup, ""},
		{"dev flag", Options{Packages: []string{"x"}, Dev: true}, manifest.DevGroup, ""},
		{"dev flag with dev group", Options{Packages: []string{"x"}, Dev: true, Group: "dev"}, manifest.DevGroup, ""},
		{"named group", Options{Packages: []string{"x"}, Group: "docs"}, "docs", ""},
		{"no packages", Options{}, "", errors.ErrCodeInvalidPackage},
		{"dev with other group", Options{Packages: []string{"x"}, Dev: true, Group: "docs"}, "", errors.ErrCodeInvalidConfig},
		{"invalid group", Options{Packages: []string{"x"}, Group: "a.b]"}, "", errors.ErrCodeInvalidPackage},
		{"invalid extra", Options{Packages: []string{"x"}, Extras: []string{"ok,not ok"}}, "", errors.ErrCodeInvalidPackage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := opts.ValidateAndSetDefaults()
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateAndSetDefaults: %v", err)
			}
			if opts.Group != tt.wantGroup {
				t.Errorf("Group = %q, want %q", opts.Group, tt.wantGroup)
			}
			if opts.Dir != "." {
				t.Errorf("Dir = %q, want \".\"", opts.Dir)
			}
			if opts.Logger == nil {
				t.Error("Logger not defaulted")
			}
		})
	}
}

func TestValidateAndSetDefaults_Idempotent(t *testing.T) {
	opts := Options{Packages: []string{"x"}, Dev: true}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	opts.Group = "custom"
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Group != "custom" {
		t.Errorf("second call changed Group to %q", opts.Group)
	}
}

func TestNormalizeExtras(t *testing.T) {
	got, err := normalizeExtras([]string{"socks, security", "socks", " ", "brotli"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"brotli", "security", "socks"}; !slices.Equal(got, want) {
		t.Errorf("normalizeExtras = %v, want %v", got, want)
	}
}
