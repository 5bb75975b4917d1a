package models

import (
	"fmt"
	"strings"
)

// Domain identifies one of the three diagnostic tasks.
type Domain string

const (
	DomainSafety Domain = "safety" // Pack anomaly detection
	DomainHealth Domain = "health" // State-of-Health estimation
	DomainDriver Domain = "driver" // Driving-profile classification
)

// AllDomains returns the domains in their canonical generation order.
func AllDomains() []Domain {
	return []Domain{DomainSafety, DomainHealth, DomainDriver}
}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainSafety, DomainHealth, DomainDriver:
		return true
	}
	return false
}

// ParseDomain maps a case-insensitive name to a Domain.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown domain %q (valid: safety, health, driver)", s)
	}
	return d, nil
}

// ParseDomains parses a comma-separated domain list. An empty string or
// "all" selects every domain. Duplicates are dropped, order is preserved.
func ParseDomains(s string) ([]Domain, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllDomains(), nil
	}

	seen := make(map[Domain]bool)
	var out []Domain
	for _, part := range strings.Split(s, ",") {
		d, err := ParseDomain(part)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

// FilePrefix is the dataset file stem the training pipeline looks for.
func (d Domain) FilePrefix() string {
	switch d {
	case DomainSafety:
		return "model_a_safety"
	case DomainHealth:
		return "model_b_health"
	case DomainDriver:
		return "model_c_driver"
	}
	return "model_" + string(d)
}

// DatasetFileName returns the conventional dataset file name for n rows,
// e.g. "model_a_safety_10k.csv". Counts that are not whole thousands are
// written out in full ("model_a_safety_2500.csv").
func (d Domain) DatasetFileName(n int, ext string) string {
	size := fmt.Sprintf("%d", n)
	if n >= 1000 && n%1000 == 0 {
		size = fmt.Sprintf("%dk", n/1000)
	}
	return fmt.Sprintf("%s_%s.%s", d.FilePrefix(), size, ext)
}
