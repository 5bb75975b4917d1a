package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiveCmds(t *testing.T) {
	root := t.TempDir()

	for i := 0; i < 3; i++ {
		if _, err := runCmd(t, "generate", "--root", root, "-n", "100", "-d", "driver", "--archive", "--no-catalog"); err != nil {
			t.Fatalf("generate %d error = %v", i, err)
		}
		time.Sleep(5 * time.Millisecond) // bundle names carry millisecond timestamps
	}

	out, err := runCmd(t, "archive", "list", "--root", root, "--json")
	if err != nil {
		t.Fatalf("archive list error = %v", err)
	}
	var list struct {
		Bundles []struct {
			Path string `json:"path"`
		} `json:"bundles"`
		Count int `json:"count"`
	}
	decode(t, out, &list)
	if list.Count != 3 {
		t.Fatalf("bundles = %d, want 3", list.Count)
	}
	newest := list.Bundles[0].Path

	out, err = runCmd(t, "archive", "prune", "--root", root, "--json", "--max-count", "1", "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	var pruned struct {
		Deleted []string `json:"deleted"`
		DryRun  bool     `json:"dry_run"`
	}
	decode(t, out, &pruned)
	if len(pruned.Deleted) != 2 || !pruned.DryRun {
		t.Fatalf("dry run = %+v", pruned)
	}
	for _, p := range pruned.Deleted {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("dry run removed %s", p)
		}
	}

	if _, err := runCmd(t, "archive", "prune", "--root", root, "--max-count", "1"); err != nil {
		t.Fatal(err)
	}
	entries, _ := filepath.Glob(filepath.Join(root, ".battsim", "archive", "*.dataset.gz"))
	if len(entries) != 1 || entries[0] != newest {
		t.Fatalf("after prune: %v, want only %s", entries, newest)
	}

	if _, err := runCmd(t, "archive", "verify", newest); err != nil {
		t.Errorf("verify error = %v", err)
	}

	out, err = runCmd(t, "archive", "restore", newest, "--root", root, "-o", "restored", "--json")
	if err != nil {
		t.Fatalf("restore error = %v", err)
	}
	var restored map[string]string
	decode(t, out, &restored)
	if restored["path"] != filepath.Join(root, "restored", "model_c_driver_100.csv") {
		t.Errorf("restored path = %s", restored["path"])
	}
	if _, err := runCmd(t, "validate", restored["path"]); err != nil {
		t.Errorf("restored dataset invalid: %v", err)
	}
}

func TestArchiveVerify_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battsim-x.dataset.gz")
	if err := os.WriteFile(path, []byte("not a bundle"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "archive", "verify", path); err == nil {
		t.Error("verify should fail on a corrupt bundle")
	}
}

func TestArchiveRestore_OutsideRoot(t *testing.T) {
	root := t.TempDir()
	if _, err := runCmd(t, "archive", "restore", "x.dataset.gz", "--root", root, "-o", "../escape"); err == nil {
		t.Error("restore outside the root should be rejected")
	}
}

func TestArchivePrune_BadFlags(t *testing.T) {
	tests := [][]string{
		{"--max-age", "soon"},
		{"--max-size", "lots"},
		{"--max-count", "-1"},
	}
	for _, flags := range tests {
		args := append([]string{"archive", "prune", "--root", t.TempDir()}, flags...)
		if _, err := runCmd(t, args...); err == nil {
			t.Errorf("prune %v should fail", flags)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
