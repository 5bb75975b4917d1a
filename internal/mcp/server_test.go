package mcp

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/battsim/internal/config"
	"github.com/nvandessel/battsim/internal/models"
	"github.com/nvandessel/battsim/internal/store"
)

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()

	settings := config.Default()
	settings.Generation.Samples = 200

	s, err := NewServer(context.Background(), &Config{
		Name:     "battsim-test",
		Version:  "v0.0.0-test",
		Root:     root,
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, root
}

func TestNewServer_RequiresSettings(t *testing.T) {
	if _, err := NewServer(context.Background(), &Config{Root: t.TempDir()}); err == nil {
		t.Fatal("NewServer() without settings should fail")
	}
}

func TestHandleGenerate(t *testing.T) {
	s, root := setupTestServer(t)
	ctx := context.Background()

	seed := int64(11)
	_, out, err := s.handleGenerate(ctx, nil, GenerateInput{
		Domains:   "health,driver",
		Samples:   150,
		Seed:      &seed,
		OutputDir: "agent-out",
	})
	if err != nil {
		t.Fatalf("handleGenerate() error = %v", err)
	}
	if out.Failed != 0 {
		t.Fatalf("Failed = %d, message %q", out.Failed, out.Message)
	}
	if len(out.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(out.Results))
	}

	for i, want := range []models.Domain{models.DomainHealth, models.DomainDriver} {
		r := out.Results[i]
		if r.Domain != want {
			t.Errorf("results[%d].Domain = %s, want %s", i, r.Domain, want)
		}
		if r.Samples != 150 || r.Seed != 11 {
			t.Errorf("results[%d] samples=%d seed=%d, want 150 and 11", i, r.Samples, r.Seed)
		}
		// Paths come back relative to the project root.
		if filepath.IsAbs(r.Path) || path.Dir(r.Path) != "agent-out" {
			t.Errorf("results[%d].Path = %s, want agent-out/<file>", i, r.Path)
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(r.Path))); err != nil {
			t.Errorf("dataset not written: %v", err)
		}
		if !strings.Contains(out.Message, r.Path) {
			t.Errorf("Message = %q, want it to list %s", out.Message, r.Path)
		}
	}
	if !strings.HasPrefix(out.Message, "Generated 2 dataset(s)") {
		t.Errorf("Message = %q", out.Message)
	}
	if strings.Contains(out.Message, root) {
		t.Errorf("Message = %q exposes the project root", out.Message)
	}

	runs, err := s.catalog.ListRuns(ctx, store.RunFilter{BatchID: out.Results[0].BatchID})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("catalog has %d runs for the batch, want 2", len(runs))
	}
}

func TestHandleGenerate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args GenerateInput
		want string
	}{
		{"escaping output dir", GenerateInput{OutputDir: "../elsewhere"}, "output directory rejected"},
		{"unknown domain", GenerateInput{Domains: "thermal"}, "thermal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := setupTestServer(t)
			_, _, err := s.handleGenerate(context.Background(), nil, tt.args)
			if err == nil {
				t.Fatal("handleGenerate() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestHandleGenerate_InvalidSamples(t *testing.T) {
	s, _ := setupTestServer(t)
	_, _, err := s.handleGenerate(context.Background(), nil, GenerateInput{Samples: -5})
	if err == nil || !strings.Contains(err.Error(), "invalid generation settings") {
		t.Fatalf("handleGenerate() error = %v, want invalid settings", err)
	}
}

func TestHandleGenerate_DoesNotMutateSettings(t *testing.T) {
	s, _ := setupTestServer(t)
	seed := int64(3)
	if _, _, err := s.handleGenerate(context.Background(), nil, GenerateInput{
		Domains: "driver", Samples: 120, Seed: &seed, Format: "arrow",
	}); err != nil {
		t.Fatalf("handleGenerate() error = %v", err)
	}
	g := s.cfg.Generation
	if g.Samples != 200 || g.Seed != 42 || g.Format != "csv" || g.OutputDir != "data" {
		t.Errorf("server settings changed: %+v", g)
	}
}

func TestHandleGenerate_RateLimited(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()
	args := GenerateInput{Domains: "driver", Samples: 50}

	for i := 0; i < 2; i++ {
		if _, _, err := s.handleGenerate(ctx, nil, args); err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	_, _, err := s.handleGenerate(ctx, nil, args)
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("third call error = %v, want rate limit", err)
	}
}

func TestHandleSchema(t *testing.T) {
	s, _ := setupTestServer(t)

	_, all, err := s.handleSchema(context.Background(), nil, SchemaInput{})
	if err != nil {
		t.Fatalf("handleSchema() error = %v", err)
	}
	if len(all.Domains) != 3 {
		t.Fatalf("got %d domains, want 3", len(all.Domains))
	}

	_, one, err := s.handleSchema(context.Background(), nil, SchemaInput{Domain: "health"})
	if err != nil {
		t.Fatalf("handleSchema(health) error = %v", err)
	}
	if len(one.Domains) != 1 || one.Domains[0].Domain != models.DomainHealth {
		t.Fatalf("handleSchema(health) = %+v", one.Domains)
	}
	if one.Domains[0].Boundary == nil {
		t.Error("health description should carry its SOH boundary")
	}

	if _, _, err := s.handleSchema(context.Background(), nil, SchemaInput{Domain: "bogus"}); err == nil {
		t.Error("handleSchema(bogus) should fail")
	}
}

func TestHandleValidate(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()

	_, gen, err := s.handleGenerate(ctx, nil, GenerateInput{Domains: "safety", Samples: 100})
	if err != nil {
		t.Fatalf("handleGenerate() error = %v", err)
	}
	// The returned path can be passed straight back in.
	_, out, err := s.handleValidate(ctx, nil, ValidateInput{Path: gen.Results[0].Path})
	if err != nil {
		t.Fatalf("handleValidate() error = %v", err)
	}
	if !out.Valid {
		t.Errorf("generated dataset reported invalid: %s", out.Message)
	}
	if out.Report.Rows != 100 || out.Report.Domain != models.DomainSafety {
		t.Errorf("report = %+v", out.Report)
	}
}

func TestHandleValidate_Invalid(t *testing.T) {
	s, root := setupTestServer(t)

	schema := models.DriverSchema()
	row := make([]string, len(schema.Header()))
	for i := range row {
		row[i] = "1"
	}
	row[schema.ColumnIndex(models.ColBrakeIntensity)] = "150.0"
	row[len(row)-1] = "9"
	content := strings.Join(schema.Header(), ",") + "\n" + strings.Join(row, ",") + "\n"
	if err := os.WriteFile(filepath.Join(root, "bad.csv"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, out, err := s.handleValidate(context.Background(), nil, ValidateInput{Path: "bad.csv"})
	if err != nil {
		t.Fatalf("handleValidate() error = %v", err)
	}
	if out.Valid {
		t.Fatalf("bad dataset reported valid: %s", out.Message)
	}
	if out.Report.TotalIssues < 2 {
		t.Errorf("TotalIssues = %d, want ceiling and label issues", out.Report.TotalIssues)
	}
}

func TestHandleValidate_RejectsOutsideRoot(t *testing.T) {
	s, _ := setupTestServer(t)
	outside := filepath.Join(t.TempDir(), "x.csv")
	if err := os.WriteFile(outside, []byte("a,b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.handleValidate(context.Background(), nil, ValidateInput{Path: outside})
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("handleValidate() error = %v, want path rejection", err)
	}
}
