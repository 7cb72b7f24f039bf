// Package table reads tabular input into ordered rows and writes rows back
// out as CSV.
//
// A Row keeps its columns in source order. Fields can be added or
// overwritten but never removed, so every stage of a bulk run (reader,
// normalizer, result hook) can enrich a row without losing data another
// stage put there.
package table
