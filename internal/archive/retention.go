package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is one bundle in the archive directory.
type Entry struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`

	// Header is nil when the bundle header could not be read.
	Header *Header `json:"header,omitempty"`
}

// RetentionPolicy decides which bundles to keep.
type RetentionPolicy interface {
	Apply(entries []Entry) (keep []Entry)
}

// CountPolicy keeps the N most recent bundles.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount entries (assumed sorted newest-first).
func (p *CountPolicy) Apply(entries []Entry) []Entry {
	if len(entries) <= p.MaxCount {
		return entries
	}
	return entries[:p.MaxCount]
}

// AgePolicy keeps bundles newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
	now    func() time.Time
}

// Apply keeps entries whose CreatedAt is within MaxAge of now.
func (p *AgePolicy) Apply(entries []Entry) []Entry {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	cutoff := now().Add(-p.MaxAge)
	var keep []Entry
	for _, e := range entries {
		if e.CreatedAt.After(cutoff) {
			keep = append(keep, e)
		}
	}
	return keep
}

// SizePolicy keeps bundles until total size exceeds MaxTotalBytes.
type SizePolicy struct {
	MaxTotalBytes int64
}

// Apply keeps entries (newest-first) until adding the next would exceed the limit.
// The newest bundle is always kept.
func (p *SizePolicy) Apply(entries []Entry) []Entry {
	var keep []Entry
	var total int64
	for _, e := range entries {
		if total+e.Size > p.MaxTotalBytes && len(keep) > 0 {
			break
		}
		keep = append(keep, e)
		total += e.Size
	}
	return keep
}

// CompositePolicy chains policies: each one filters what the previous kept.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

// Apply runs the sub-policies in order.
func (p *CompositePolicy) Apply(entries []Entry) []Entry {
	kept := entries
	for _, policy := range p.Policies {
		kept = policy.Apply(kept)
	}
	return kept
}

// NewPolicy builds the retention policy for the given limits. Zero limits
// are ignored; with no limits every bundle is kept.
func NewPolicy(maxCount int, maxAge time.Duration, maxBytes int64) RetentionPolicy {
	var policies []RetentionPolicy
	if maxCount > 0 {
		policies = append(policies, &CountPolicy{MaxCount: maxCount})
	}
	if maxAge > 0 {
		policies = append(policies, &AgePolicy{MaxAge: maxAge})
	}
	if maxBytes > 0 {
		policies = append(policies, &SizePolicy{MaxTotalBytes: maxBytes})
	}
	return &CompositePolicy{Policies: policies}
}

// List scans dir for bundles and returns them sorted newest-first.
// A missing directory is an empty archive.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !isBundleFile(de.Name()) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			continue
		}

		e := Entry{
			Path:      filepath.Join(dir, de.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		if hdr, err := ReadHeader(e.Path); err == nil {
			e.Header = hdr
			e.CreatedAt = hdr.CreatedAt
		}
		entries = append(entries, e)
	}

	// Sort newest first by filename (timestamp is embedded)
	sort.Slice(entries, func(i, j int) bool {
		return filepath.Base(entries[i].Path) > filepath.Base(entries[j].Path)
	})

	return entries, nil
}

// Prune deletes bundles not kept by the policy.
func Prune(dir string, policy RetentionPolicy) (deleted []string, err error) {
	entries, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := policy.Apply(entries)
	keepSet := make(map[string]bool, len(keep))
	for _, e := range keep {
		keepSet[e.Path] = true
	}

	for _, e := range entries {
		if !keepSet[e.Path] {
			if err := os.Remove(e.Path); err != nil {
				return deleted, fmt.Errorf("removing %s: %w", filepath.Base(e.Path), err)
			}
			deleted = append(deleted, e.Path)
		}
	}

	return deleted, nil
}

// ParseDuration parses duration strings like "30d", "2w", "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	// Custom suffixes: d (days), w (weeks)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", string(suffix), s)
	}
}

// ParseSize parses size strings like "100MB", "1GB", "500KB" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Longer suffixes first so "MB" is not read as "B"
	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	for _, ss := range suffixes {
		if numStr, ok := strings.CutSuffix(s, ss.suffix); ok {
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size: %q", s)
			}
			return num * ss.multiplier, nil
		}
	}

	return 0, fmt.Errorf("invalid size: %q (expected suffix: B, KB, MB, GB)", s)
}
