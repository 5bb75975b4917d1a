package models

import (
	"slices"
	"testing"
)

func TestParseDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    Domain
		wantErr bool
	}{
		{"safety", DomainSafety, false},
		{" Health ", DomainHealth, false},
		{"DRIVER", DomainDriver, false},
		{"thermal", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDomain(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDomain(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDomain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDomains(t *testing.T) {
	tests := []struct {
		in      string
		want    []Domain
		wantErr bool
	}{
		{"", AllDomains(), false},
		{"all", AllDomains(), false},
		{"ALL", AllDomains(), false},
		{"driver,safety", []Domain{DomainDriver, DomainSafety}, false},
		{"health, health ,driver", []Domain{DomainHealth, DomainDriver}, false},
		{"safety,,driver", nil, true},
		{"safety,thermal", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDomains(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDomains(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseDomains(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDatasetFileName(t *testing.T) {
	tests := []struct {
		d    Domain
		n    int
		ext  string
		want string
	}{
		{DomainSafety, 10000, "csv", "model_a_safety_10k.csv"},
		{DomainHealth, 10000, "csv", "model_b_health_10k.csv"},
		{DomainDriver, 10000, "csv", "model_c_driver_10k.csv"},
		{DomainSafety, 2500, "csv", "model_a_safety_2500.csv"},
		{DomainDriver, 1000, "arrow", "model_c_driver_1k.arrow"},
		{DomainHealth, 999, "csv", "model_b_health_999.csv"},
	}
	for _, tt := range tests {
		if got := tt.d.DatasetFileName(tt.n, tt.ext); got != tt.want {
			t.Errorf("DatasetFileName(%d, %q) = %q, want %q", tt.n, tt.ext, got, tt.want)
		}
	}
}
