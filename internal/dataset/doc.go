// Package dataset reads, writes, validates and summarizes dataset files.
//
// Two on-disk formats are supported: delimited text (CSV, header row then
// one row per sample, label last) and Apache Arrow IPC files. Both
// round-trip every value exactly because values are stored at their
// schema precision.
package dataset
