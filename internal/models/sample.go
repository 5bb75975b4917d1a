package models

// Trace records how a sample came to be. It is kept in memory for
// verification and trace logging and is never written to dataset files.
type Trace struct {
	// SourceLabel is the class whose profile the features were drawn from.
	SourceLabel int `json:"source_label"`

	// Scenario names the overlap sub-mode that fired, if any.
	Scenario string `json:"scenario,omitempty"`

	// Faulted is set when a sensor fault offset was injected.
	Faulted bool `json:"faulted,omitempty"`

	// Relabeled is set when the annotation-noise trial fired. The new label
	// may equal SourceLabel because it is drawn from the full label set.
	Relabeled bool `json:"relabeled,omitempty"`
}

// Sample is one synthetic observation.
type Sample struct {
	// Features holds values in schema column order, already bounded and rounded.
	Features []float64 `json:"features"`

	// Label is the final stored label.
	Label int `json:"label"`

	Trace Trace `json:"trace"`
}

// Dataset is an ordered sequence of samples sharing one schema.
type Dataset struct {
	Schema  Schema   `json:"schema"`
	Samples []Sample `json:"samples"`

	// Traced is set when Samples carry generation traces. Datasets read
	// back from files have none.
	Traced bool `json:"traced,omitempty"`
}

// Len returns the row count.
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// LabelCounts returns the number of rows per label id.
// Out-of-range labels are ignored.
func (d *Dataset) LabelCounts() []int {
	counts := make([]int, d.Schema.NumClasses())
	for _, s := range d.Samples {
		if d.Schema.ValidLabel(s.Label) {
			counts[s.Label]++
		}
	}
	return counts
}

// Column returns every value of a feature column in row order.
func (d *Dataset) Column(name string) []float64 {
	i := d.Schema.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	out := make([]float64, len(d.Samples))
	for r, s := range d.Samples {
		out[r] = s.Features[i]
	}
	return out
}
