package meta

import "time"

type PageInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	FollowersCount int64  `json:"followers_count"`
	FanCount       int64  `json:"fan_count"`
	About          string `json:"about"`
	Website        string `json:"website"`
	Category       string `json:"category"`
	Link           string `json:"link"`
}

type Summary struct {
	TotalCount int64 `json:"total_count"`
}

type Summarized struct {
	Summary Summary `json:"summary"`
}

type Shares struct {
	Count int64 `json:"count"`
}

type Post struct {
	ID          string     `json:"id"`
	Message     string     `json:"message"`
	CreatedTime string     `json:"created_time"`
	Likes       Summarized `json:"likes"`
	Comments    Summarized `json:"comments"`
	Shares      Shares     `json:"shares"`
	Reactions   Summarized `json:"reactions"`
}

type InsightValue struct {
	Value   float64 `json:"value"`
	EndTime string  `json:"end_time"`
}

type Insight struct {
	Name   string         `json:"name"`
	Period string         `json:"period"`
	Values []InsightValue `json:"values"`
}

type Media struct {
	ID            string `json:"id"`
	MediaType     string `json:"media_type"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

// Instagram holds the nested image-sharing account data collected only when
// a linked business account is discovered.
type Instagram struct {
	AccountID string
	Media     []Media
	Insights  []Insight
}

type Bundle struct {
	Page        PageInfo
	Posts       []Post
	Insights    []Insight
	Instagram   *Instagram
	CollectedAt time.Time
	Start, End  time.Time
}
