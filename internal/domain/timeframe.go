package domain

import "time"

// Timeframe selects the span and bucket spacing of an aggregated P&L series.
type Timeframe string

const (
	Timeframe1H Timeframe = "1h"
	Timeframe4H Timeframe = "4h"
	Timeframe1D Timeframe = "1d"
	Timeframe1W Timeframe = "1w"
	Timeframe1M Timeframe = "1m"
	Timeframe3M Timeframe = "3m"
	Timeframe1Y Timeframe = "1y"
)

// TimeframeConfig fixes the total duration and bucket interval of a series.
type TimeframeConfig struct {
	Duration time.Duration
	Interval time.Duration
}

var timeframeConfigs = map[Timeframe]TimeframeConfig{
	Timeframe1H: {Duration: time.Hour, Interval: 2 * time.Minute},
	Timeframe4H: {Duration: 4 * time.Hour, Interval: 5 * time.Minute},
	Timeframe1D: {Duration: 24 * time.Hour, Interval: 30 * time.Minute},
	Timeframe1W: {Duration: 7 * 24 * time.Hour, Interval: 4 * time.Hour},
	Timeframe1M: {Duration: 30 * 24 * time.Hour, Interval: 12 * time.Hour},
	Timeframe3M: {Duration: 90 * 24 * time.Hour, Interval: 24 * time.Hour},
	Timeframe1Y: {Duration: 365 * 24 * time.Hour, Interval: 7 * 24 * time.Hour},
}

// Config returns the timeframe's duration and interval. The second return is
// false for unknown timeframes.
func (t Timeframe) Config() (TimeframeConfig, bool) {
	cfg, ok := timeframeConfigs[t]
	return cfg, ok
}

// Buckets returns the number of buckets in the timeframe's series.
func (t Timeframe) Buckets() int {
	cfg, ok := timeframeConfigs[t]
	if !ok {
		return 0
	}
	return int(cfg.Duration / cfg.Interval)
}
