package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nvandessel/battsim/internal/models"
)

// WriteCSV writes ds as a header row followed by one row per sample.
func WriteCSV(w io.Writer, ds *models.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Schema.Header()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(ds.Schema.Columns)+1)
	for r, s := range ds.Samples {
		if len(s.Features) != len(ds.Schema.Columns) {
			return fmt.Errorf("row %d has %d features, schema has %d", r, len(s.Features), len(ds.Schema.Columns))
		}
		for i, c := range ds.Schema.Columns {
			record[i] = c.Format(s.Features[i])
		}
		record[len(record)-1] = strconv.Itoa(s.Label)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", r, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// ReadCSV reads a dataset, identifying its domain from the header row.
func ReadCSV(r io.Reader) (*models.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty dataset: no header row")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	schema, err := models.DetectSchema(header)
	if err != nil {
		return nil, err
	}
	cr.FieldsPerRecord = len(header)

	ds := &models.Dataset{Schema: schema}
	for row := 0; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", row, err)
		}
		s, err := parseRecord(schema, record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		ds.Samples = append(ds.Samples, s)
	}
	return ds, nil
}

func parseRecord(schema models.Schema, record []string) (models.Sample, error) {
	features := make([]float64, len(schema.Columns))
	for i, c := range schema.Columns {
		v, err := c.Parse(record[i])
		if err != nil {
			return models.Sample{}, err
		}
		features[i] = v
	}
	label, err := strconv.Atoi(record[len(record)-1])
	if err != nil {
		return models.Sample{}, fmt.Errorf("column %s: %w", schema.LabelColumn, err)
	}
	return models.Sample{Features: features, Label: label, Trace: models.Trace{SourceLabel: label}}, nil
}
