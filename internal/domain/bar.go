package domain

import "time"

// Bar is one OHLCV observation. The bar-derived training source turns runs
// of bars into synthetic labeled samples when live outcomes are scarce.
type Bar struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}
