package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/battsim/internal/config"
)

func TestConfigShow(t *testing.T) {
	root := t.TempDir()
	t.Setenv("BATTSIM_SAMPLES", "777")
	t.Setenv("BATTSIM_PUBLISH_SECRET_KEY", "wJalrXUtnFEMIK7MDENGbPxRfiCYEXAMPLEKEY")

	out, err := runCmd(t, "config", "show", "--root", root, "--json")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	var cfg config.Config
	decode(t, out, &cfg)
	if cfg.Generation.Samples != 777 {
		t.Errorf("samples = %d, want env override 777", cfg.Generation.Samples)
	}
	if strings.Contains(out, "wJalrXUtnFEMIK7MDENGbPxRfiCYEXAMPLEKEY") {
		t.Error("secret key printed in full")
	}
	if cfg.Publish.SecretKey != "wJal...EKEY" {
		t.Errorf("secret = %q, want redacted", cfg.Publish.SecretKey)
	}

	out, err = runCmd(t, "config", "show", "--root", root)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "samples: 777") {
		t.Errorf("yaml output missing samples:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	root := t.TempDir()
	if _, err := runCmd(t, "config", "init", "--root", root); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	path := filepath.Join(root, ".battsim", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := runCmd(t, "config", "init", "--root", root); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := runCmd(t, "config", "init", "--root", root, "--force"); err != nil {
		t.Errorf("init --force error = %v", err)
	}

	// The written file is picked up by later commands.
	if err := os.WriteFile(path, []byte("generation:\n  samples: 321\n"), 0600); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "config", "show", "--root", root)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "samples: 321") {
		t.Errorf("config file not applied:\n%s", out)
	}
}

func TestConfigFlag_MissingFile(t *testing.T) {
	if _, err := runCmd(t, "config", "show", "--config", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing --config should fail")
	}
}
