package models

import "time"

// Record is the common interface over the three generic metric record
// variants. Records are write-once: created during transform, inserted during
// load, never updated. The interface is sealed so the storage layer can rely
// on an exhaustive type switch.
type Record interface {
	record()
}

// Sections maps a named section of a transformed bundle (e.g. "sales",
// "facebook") to the records it produced.
type Sections map[string][]Record

// Records flattens all sections into a single slice. Iteration order of the
// sections is unspecified; record order within a section is preserved.
func (s Sections) Records() []Record {
	var out []Record
	for _, recs := range s {
		out = append(out, recs...)
	}
	return out
}

// Count returns the total number of records across all sections.
func (s Sections) Count() int {
	n := 0
	for _, recs := range s {
		n += len(recs)
	}
	return n
}

// KeyedMetric is a category/sub-category keyed row with a string-encoded
// value, used for breakdown-style metrics (site performance, social accounts).
type KeyedMetric struct {
	Category     string  `json:"category"`
	SubCategory  string  `json:"sub_category,omitempty"`
	Value        string  `json:"value"`
	Unit         string  `json:"unit,omitempty"`
	TrendValue   string  `json:"trend_value,omitempty"`
	TrendUnit    string  `json:"trend_unit,omitempty"`
	Icon         string  `json:"icon,omitempty"`
	Color        string  `json:"color,omitempty"`
	DisplayOrder int     `json:"display_order"`
	Status       string  `json:"status,omitempty"`
}

// NamedMetric is a typed, named row with a numeric value and a pre-formatted
// display string (dashboard headline metrics).
type NamedMetric struct {
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Value        float64  `json:"value"`
	DisplayValue string   `json:"display_value"`
	TrendValue   *float64 `json:"trend_value,omitempty"`
	TrendStatus  string   `json:"trend_status,omitempty"`
	Color        string   `json:"color,omitempty"`
	Icon         string   `json:"icon,omitempty"`
}

// TimestampedMetric is a typed row carrying the collection timestamp, used
// for time-anchored series such as revenue and ad-spend metrics.
type TimestampedMetric struct {
	Type         string    `json:"type"`
	SubType      string    `json:"subtype,omitempty"`
	Name         string    `json:"name"`
	Value        float64   `json:"value"`
	DisplayValue string    `json:"display_value"`
	Trend        *float64  `json:"trend,omitempty"`
	Color        string    `json:"color,omitempty"`
	Date         time.Time `json:"date"`
}

func (KeyedMetric) record()       {}
func (NamedMetric) record()       {}
func (TimestampedMetric) record() {}
