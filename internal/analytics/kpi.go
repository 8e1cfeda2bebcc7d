package analytics

import (
	"time"

	"tribune/internal/logging"
	"tribune/internal/types"
)

// RollupKPIs computes every KPI series for the trailing day and stores
// one snapshot per series. A failed series is logged and skipped so one
// bad metric never blocks the rest.
func (s *Service) RollupKPIs() error {
	fame, err := s.FameScore(1)
	if err != nil {
		return err
	}

	values := map[string]func() (float64, error){
		types.KPIFameScore:        func() (float64, error) { return fame, nil },
		types.KPIRevenueDaily:     s.RevenuePerDay,
		types.KPIAuthoritySignals: func() (float64, error) { return s.AuthoritySignals(1) },
		types.KPIPenaltyScore:     func() (float64, error) { return s.PenaltyScore(1) },
		types.KPIEngagementRate:   s.EngagementRate,
		types.KPIFollowerGrowth:   func() (float64, error) { return s.followerDelta(1) },
		types.KPIPostFrequency:    s.postFrequency,
		types.KPIObjectiveScore:   s.objectiveKPI,
	}

	for _, series := range types.AllKPISeries {
		calc, ok := values[series]
		if !ok {
			continue
		}
		value, err := calc()
		if err != nil {
			logging.Analytics("KPI %s failed: %v", series, err)
			continue
		}
		if err := s.store.SaveKPI(series, value); err != nil {
			logging.Analytics("KPI %s save failed: %v", series, err)
		}
	}
	logging.Analytics("KPI rollup complete")
	return nil
}

func (s *Service) postFrequency() (float64, error) {
	count, err := s.store.CountPostsSince(s.now().Add(-24 * time.Hour))
	if err != nil {
		return 0, err
	}
	return float64(count), nil
}

func (s *Service) objectiveKPI() (float64, error) {
	fame, err := s.FameScore(1)
	if err != nil {
		return 0, err
	}
	revenue, err := s.RevenuePerDay()
	if err != nil {
		return 0, err
	}
	authority, err := s.AuthoritySignals(1)
	if err != nil {
		return 0, err
	}
	penalty, err := s.PenaltyScore(1)
	if err != nil {
		return 0, err
	}
	impact, err := s.ImpactScore(7)
	if err != nil {
		return 0, err
	}
	return s.GlobalJScore(fame, revenue, authority, penalty, impact), nil
}

// TrendPoint is one KPI sample for trend reporting.
type TrendPoint struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// KPITrends returns per-series history over a window of days.
func (s *Service) KPITrends(days int) (map[string][]TrendPoint, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	trends := make(map[string][]TrendPoint, len(types.AllKPISeries))
	for _, series := range types.AllKPISeries {
		history, err := s.store.KPIHistory(series, since)
		if err != nil {
			return nil, err
		}
		points := make([]TrendPoint, 0, len(history))
		for _, snap := range history {
			points = append(points, TrendPoint{Value: snap.Value, Timestamp: snap.CreatedAt})
		}
		trends[series] = points
	}
	return trends, nil
}

// GrowthRates computes the percent change between the last two samples
// of each series.
func (s *Service) GrowthRates(days int) (map[string]float64, error) {
	trends, err := s.KPITrends(days)
	if err != nil {
		return nil, err
	}
	rates := make(map[string]float64, len(trends))
	for series, points := range trends {
		if len(points) < 2 {
			rates[series] = 0
			continue
		}
		previous := points[len(points)-2].Value
		recent := points[len(points)-1].Value
		if previous == 0 {
			rates[series] = 0
			continue
		}
		rates[series] = (recent - previous) / previous * 100
	}
	return rates, nil
}
