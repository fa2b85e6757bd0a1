package models

// DailyStats is one day's worth of a counted metric for admin charts.
type DailyStats struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DailyRevenue is one day's summed purchase revenue for admin charts.
type DailyRevenue struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}
