// Package dataset holds the cleaned, immutable form of an uploaded sales export.
package dataset

import "time"

// Record is one cleaned row. Text fields are labels (trimmed, uppercased);
// numeric fields are always defined.
type Record struct {
	Line     int // 1-based line in the source file
	Seller   string
	Brand    string
	Category string
	Client   string
	Sale     float64
	Cost     float64
	Units    float64
	Date     time.Time
	HasDate  bool
	Year     int
	Month    int
}

// Dataset is built once per file and never mutated afterwards.
type Dataset struct {
	ID          string // content hash, used as the cache key
	Fingerprint string // header fingerprint, used to find column profiles
	Name        string
	Headers     []string
	Records     []Record
	HasDates    bool
	LoadedAt    time.Time
	Warnings    []string
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Years returns the distinct years present, in first-seen order.
func (d *Dataset) Years() []int {
	if d == nil {
		return nil
	}
	seen := make(map[int]bool)
	var years []int
	for _, r := range d.Records {
		if r.HasDate && !seen[r.Year] {
			seen[r.Year] = true
			years = append(years, r.Year)
		}
	}
	return years
}
