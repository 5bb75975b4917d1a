// Package archive keeps compressed, checksummed bundles of generated
// datasets and prunes them by retention policy.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/battsim/internal/models"
)

const (
	filePrefix = "battsim-"
	fileSuffix = ".dataset.gz"

	// timestamps sort lexically in creation order
	timeLayout = "20060102-150405.000"
)

// Meta describes the dataset being archived.
type Meta struct {
	RunID  string
	Domain models.Domain
	Seed   int64
	Rows   int
	Format string
}

// BundlePath creates a timestamped bundle filename in dir.
func BundlePath(dir string, domain models.Domain, now time.Time) string {
	ts := now.UTC().Format(timeLayout)
	return filepath.Join(dir, fmt.Sprintf("%s%s-%s%s", filePrefix, ts, domain, fileSuffix))
}

// Archive bundles the dataset file at datasetPath into dir.
func Archive(dir, datasetPath string, meta Meta) (*Entry, error) {
	f, err := os.Open(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	now := time.Now()
	path := BundlePath(dir, meta.Domain, now)
	hdr, err := WriteBundle(path, Header{
		CreatedAt: now.UTC(),
		RunID:     meta.RunID,
		Domain:    meta.Domain,
		Seed:      meta.Seed,
		Rows:      meta.Rows,
		Format:    meta.Format,
		FileName:  filepath.Base(datasetPath),
	}, f)
	if err != nil {
		return nil, fmt.Errorf("archiving %s: %w", filepath.Base(datasetPath), err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat bundle: %w", err)
	}
	return &Entry{Path: path, Size: info.Size(), CreatedAt: hdr.CreatedAt, Header: hdr}, nil
}

// Restore extracts a bundle into dir under its original file name and
// returns the restored path.
func Restore(bundlePath, dir string) (string, error) {
	hdr, err := ReadHeader(bundlePath)
	if err != nil {
		return "", err
	}
	name := filepath.Base(hdr.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("bundle has no file name")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	out := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := Extract(bundlePath, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmpPath, out); err != nil {
		return "", fmt.Errorf("moving dataset into place: %w", err)
	}
	return out, nil
}

func isBundleFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}
