package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/battsim/internal/models"
)

// Arrow schema metadata keys.
const (
	metaDomain = "battsim.domain"
	metaLabels = "battsim.class_names"
)

// arrowBatchRows bounds the size of each record batch.
const arrowBatchRows = 64 * 1024

// ArrowSchema maps a dataset schema to Arrow: float64 feature columns,
// int64 for integer columns and the label.
func ArrowSchema(schema models.Schema) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(schema.Columns)+1)
	for _, c := range schema.Columns {
		var typ arrow.DataType = arrow.PrimitiveTypes.Float64
		if c.Integer {
			typ = arrow.PrimitiveTypes.Int64
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: typ})
	}
	fields = append(fields, arrow.Field{Name: schema.LabelColumn, Type: arrow.PrimitiveTypes.Int64})

	md := arrow.NewMetadata(
		[]string{metaDomain, metaLabels},
		[]string{string(schema.Domain), strings.Join(schema.ClassNames, ",")},
	)
	return arrow.NewSchema(fields, &md)
}

// WriteArrow writes ds as an Arrow IPC file. The file footer is written
// on close, so w must be seekable.
func WriteArrow(w io.WriteSeeker, ds *models.Dataset) error {
	mem := memory.NewGoAllocator()
	schema := ArrowSchema(ds.Schema)

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for start := 0; start < len(ds.Samples); start += arrowBatchRows {
		end := min(start+arrowBatchRows, len(ds.Samples))
		if err := appendBatch(b, ds, start, end); err != nil {
			_ = fw.Close()
			return err
		}
		rec := b.NewRecord()
		err := fw.Write(rec)
		rec.Release()
		if err != nil {
			_ = fw.Close()
			return fmt.Errorf("writing arrow batch at row %d: %w", start, err)
		}
	}

	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

func appendBatch(b *array.RecordBuilder, ds *models.Dataset, start, end int) error {
	cols := ds.Schema.Columns
	for r := start; r < end; r++ {
		s := ds.Samples[r]
		if len(s.Features) != len(cols) {
			return fmt.Errorf("row %d has %d features, schema has %d", r, len(s.Features), len(cols))
		}
		for i, c := range cols {
			if c.Integer {
				b.Field(i).(*array.Int64Builder).Append(int64(s.Features[i]))
			} else {
				b.Field(i).(*array.Float64Builder).Append(s.Features[i])
			}
		}
		b.Field(len(cols)).(*array.Int64Builder).Append(int64(s.Label))
	}
	return nil
}

// ReadArrow reads a dataset written by WriteArrow.
func ReadArrow(r ipc.ReadAtSeeker) (*models.Dataset, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("opening arrow file: %w", err)
	}
	defer fr.Close()

	header := make([]string, 0, fr.Schema().NumFields())
	for _, f := range fr.Schema().Fields() {
		header = append(header, f.Name)
	}
	schema, err := models.DetectSchema(header)
	if err != nil {
		return nil, err
	}
	if md := fr.Schema().Metadata(); md.FindKey(metaDomain) >= 0 {
		if got := md.Values()[md.FindKey(metaDomain)]; got != string(schema.Domain) {
			return nil, fmt.Errorf("arrow metadata names domain %q but columns match %q", got, schema.Domain)
		}
	}

	ds := &models.Dataset{Schema: schema}
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("reading arrow batch %d: %w", i, err)
		}
		if err := appendRecord(ds, rec); err != nil {
			return nil, fmt.Errorf("arrow batch %d: %w", i, err)
		}
	}
	return ds, nil
}

func appendRecord(ds *models.Dataset, rec arrow.Record) error {
	cols := ds.Schema.Columns
	n := int(rec.NumRows())

	values := make([]func(row int) float64, len(cols))
	for i, c := range cols {
		switch arr := rec.Column(i).(type) {
		case *array.Float64:
			values[i] = arr.Value
		case *array.Int64:
			values[i] = func(row int) float64 { return float64(arr.Value(row)) }
		default:
			return fmt.Errorf("column %s has unsupported type %s", c.Name, arr.DataType())
		}
	}
	labels, ok := rec.Column(len(cols)).(*array.Int64)
	if !ok {
		return fmt.Errorf("label column %s is not int64", ds.Schema.LabelColumn)
	}

	for row := range n {
		features := make([]float64, len(cols))
		for i := range cols {
			features[i] = values[i](row)
		}
		label := int(labels.Value(row))
		ds.Samples = append(ds.Samples, models.Sample{
			Features: features,
			Label:    label,
			Trace:    models.Trace{SourceLabel: label},
		})
	}
	return nil
}
