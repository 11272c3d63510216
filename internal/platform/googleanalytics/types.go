package googleanalytics

import "time"

// Row is one typed result row: dimension values keyed by dimension name and
// metric values keyed by metric name.
type Row struct {
	Dimensions map[string]string
	Metrics    map[string]float64
}

// Report is the typed form of one runReport response.
type Report struct {
	Rows     []Row
	RowCount int
}

// rawReport mirrors the Data API response shape before header-driven
// conversion.
type rawReport struct {
	DimensionHeaders []struct {
		Name string `json:"name"`
	} `json:"dimensionHeaders"`
	MetricHeaders []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"metricHeaders"`
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
	RowCount int `json:"rowCount"`
}

type Bundle struct {
	Basic          *Report
	TrafficSources *Report
	Pages          *Report
	Realtime       *Report
	CollectedAt    time.Time
	Start, End     time.Time
}
