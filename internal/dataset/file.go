package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/battsim/internal/constants"
	"github.com/nvandessel/battsim/internal/models"
)

// WriteResult describes a dataset file on disk.
type WriteResult struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Bytes    int64  `json:"bytes"`
	Checksum string `json:"checksum"`
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	if format == constants.FormatArrow {
		return ".arrow"
	}
	return ".csv"
}

// FormatForPath infers the dataset format from a file name.
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".arrow") {
		return constants.FormatArrow
	}
	return constants.FormatCSV
}

// WriteFile writes ds to path in format. The file is written to a
// temporary sibling and renamed into place, so readers never observe a
// partial dataset.
func WriteFile(path string, ds *models.Dataset, format string) (*WriteResult, error) {
	if !constants.ValidFormats[format] {
		return nil, fmt.Errorf("unknown dataset format %q (valid: csv, arrow)", format)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	switch format {
	case constants.FormatArrow:
		err = WriteArrow(tmp, ds)
	default:
		err = WriteCSV(tmp, ds)
	}
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("setting dataset permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("syncing dataset: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing dataset: %w", err)
	}
	sum, err := FileChecksum(tmpPath)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("moving dataset into place: %w", err)
	}

	return &WriteResult{
		Path:     path,
		Format:   format,
		Bytes:    info.Size(),
		Checksum: sum,
	}, nil
}

// ReadFile reads a dataset, choosing the codec from the file extension.
func ReadFile(path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	var ds *models.Dataset
	if FormatForPath(path) == constants.FormatArrow {
		ds, err = ReadArrow(f)
	} else {
		ds, err = ReadCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return ds, nil
}

// FileChecksum returns the sha256 checksum of a file as "sha256:<hex>".
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
