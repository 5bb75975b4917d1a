package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/battsim/internal/models"
)

// FormatVersion is the bundle layout written by this package.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of a bundled dataset (1GB).
const MaxDecompressedSize = 1 << 30

// Header is the plain-text JSON first line of a bundle. The gzip payload
// follows on the next byte.
type Header struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	RunID     string        `json:"run_id,omitempty"`
	Domain    models.Domain `json:"domain"`
	Seed      int64         `json:"seed"`
	Rows      int           `json:"rows"`
	Format    string        `json:"format"`
	FileName  string        `json:"file_name"`

	// Checksum covers the compressed payload; DatasetChecksum covers the
	// original file and matches the run catalog.
	Checksum        string `json:"checksum"`
	DatasetChecksum string `json:"dataset_checksum"`
}

// WriteBundle compresses the dataset read from src into a bundle at path.
// hdr.Checksum and hdr.DatasetChecksum are computed here.
func WriteBundle(path string, hdr Header, src io.Reader) (*Header, error) {
	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	raw := sha256.New()
	if _, err := io.Copy(io.MultiWriter(gzw, raw), src); err != nil {
		return nil, fmt.Errorf("compressing dataset: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	hdr.Version = FormatVersion
	hdr.Checksum = checksum(compressed.Bytes())
	hdr.DatasetChecksum = "sha256:" + hex.EncodeToString(raw.Sum(nil))

	headerBytes, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	w.Write(headerBytes)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing bundle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("moving bundle into place: %w", err)
	}

	return &hdr, nil
}

// ReadHeader reads only the header line of a bundle without decompressing.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	hdr, _, err := readHeader(bufio.NewReader(f))
	return hdr, err
}

// Verify checks the payload checksum and, after decompressing, the
// checksum of the dataset itself.
func Verify(path string) (*Header, error) {
	hdr, err := Extract(path, io.Discard)
	if err != nil {
		return nil, err
	}
	return hdr, nil
}

// Extract verifies a bundle and writes the original dataset to w.
func Extract(path string, w io.Writer) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	hdr, reader, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}

	compressedData, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressedData); actual != hdr.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", hdr.Checksum, actual)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	raw := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, raw), io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if n > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}
	if actual := "sha256:" + hex.EncodeToString(raw.Sum(nil)); actual != hdr.DatasetChecksum {
		return nil, fmt.Errorf("dataset checksum mismatch: expected %s, got %s", hdr.DatasetChecksum, actual)
	}

	return hdr, nil
}

func readHeader(reader *bufio.Reader) (*Header, *bufio.Reader, error) {
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var hdr Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &hdr); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if hdr.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported bundle version %d", hdr.Version)
	}
	return &hdr, reader, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
