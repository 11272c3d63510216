package tiktok

import "time"

// envelope is the business API's uniform response wrapper. Code zero means
// success regardless of HTTP status.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Advertiser struct {
	AdvertiserID string `json:"advertiser_id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Currency     string `json:"currency"`
}

type Campaign struct {
	CampaignID      string  `json:"campaign_id"`
	CampaignName    string  `json:"campaign_name"`
	OperationStatus string  `json:"operation_status"`
	Objective       string  `json:"objective_type"`
	Budget          float64 `json:"budget"`
}

type Ad struct {
	AdID            string `json:"ad_id"`
	AdName          string `json:"ad_name"`
	CampaignID      string `json:"campaign_id"`
	OperationStatus string `json:"operation_status"`
}

type pageInfo struct {
	Page        int `json:"page"`
	PageSize    int `json:"page_size"`
	TotalNumber int `json:"total_number"`
	TotalPage   int `json:"total_page"`
}

// ReportMetrics is the per-ad metric block from the integrated report,
// returned as strings by the API.
type ReportMetrics struct {
	Spend             string `json:"spend"`
	Impressions       string `json:"impressions"`
	Clicks            string `json:"clicks"`
	Conversion        string `json:"conversion"`
	CostPerConversion string `json:"cost_per_conversion"`
	CTR               string `json:"ctr"`
	CPC               string `json:"cpc"`
	Reach             string `json:"reach"`
}

type ReportRow struct {
	Metrics    ReportMetrics     `json:"metrics"`
	Dimensions map[string]string `json:"dimensions"`
}

// PerformanceTotals is the numeric rollup of every report row.
type PerformanceTotals struct {
	Spend       float64
	Impressions float64
	Clicks      float64
	Conversions float64
	Reach       float64
}

type Bundle struct {
	Advertiser  *Advertiser
	Campaigns   []Campaign
	Ads         []Ad
	Report      []ReportRow
	CollectedAt time.Time
	Start, End  time.Time
}
