package model

// SubtypeCount is one entry of a ranked subtype list.
type SubtypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Trend labels the year-over-year incident count movement for a category.
// Up means counts are rising (the category is getting worse).
type Trend string

const (
	TrendUp     Trend = "Up"
	TrendDown   Trend = "Down"
	TrendStable Trend = "Stable"
)

// CategoryStat is the per-category slice of a ScoreResult.
type CategoryStat struct {
	SafetyScore        float64        `json:"safety_score"`
	CategoryPercentile float64        `json:"category_percentile"`
	IncidentCount      int            `json:"incident_count"`
	CityAvgIncidents   int            `json:"city_avg_incidents"`
	Trend              Trend          `json:"trend"`
	WeightedImpact     float64        `json:"weighted_impact"`
	TopSubtypes        []SubtypeCount `json:"top_subtypes"`
}

// YearScore is one entry of the yearly history series.
type YearScore struct {
	Year          int     `json:"year"`
	SafetyScore   float64 `json:"safety_score"`
	IncidentCount int     `json:"incident_count"`
}

// Insights carries the temporal and categorical pattern summaries.
type Insights struct {
	SafetyClock    []float64      `json:"safety_clock"`    // 24 entries, hour 0..23
	WeeklyPattern  []float64      `json:"weekly_pattern"`  // 7 entries, Monday first
	MonthlyPattern []float64      `json:"monthly_pattern"` // 12 entries, January first
	PeakHour       string         `json:"peak_hour"`
	PeakTimeRange  string         `json:"peak_time_range"`
	PrimaryRisk    string         `json:"primary_risk"`
	Neighbourhood  string         `json:"neighbourhood"`
	Premises       map[string]int `json:"premises_breakdown"`
}

// TemporalBreakdown scores the day and night halves independently.
type TemporalBreakdown struct {
	DaySafetyScore   float64 `json:"day_safety_score"`
	NightSafetyScore float64 `json:"night_safety_score"`
}

// RiskTags partitions threshold-driven labels into negative and positive sets.
// The two sets are disjoint for any single category.
type RiskTags struct {
	Negative []string `json:"negative"`
	Positive []string `json:"positive"`
}

// Benchmark situates the point against the city-wide reference population.
type Benchmark struct {
	Status           string  `json:"status"`
	CityPercentile   float64 `json:"city_percentile"`
	CityAverageScore float64 `json:"city_average_score"`
}

// TrendDirection labels the forecast movement relative to the current score.
type TrendDirection string

const (
	TrendImproving TrendDirection = "Improving"
	TrendDeclining TrendDirection = "Declining"
	TrendFlat      TrendDirection = "Stable"
)

// ForecastResult is the one-step-ahead projection of the score series.
type ForecastResult struct {
	PredictedScore     float64        `json:"predicted_score"`
	TrendDirection     TrendDirection `json:"trend_direction"`
	ModelUsed          string         `json:"model_used"`
	RMSE               float64        `json:"rmse"`
	ConfidenceInterval float64        `json:"confidence_interval"`
}

// ScoreResult is the full scoring output for one query coordinate.
// Forecast is nil when the history series is too short to project.
type ScoreResult struct {
	CurrentScore      float64                   `json:"current_score"`
	OverallPercentile float64                   `json:"overall_percentile"`
	History           []YearScore               `json:"history"` // newest first
	CategoryBreakdown map[Category]CategoryStat `json:"category_breakdown"`
	Insights          Insights                  `json:"insights"`
	TemporalBreakdown TemporalBreakdown         `json:"temporal_breakdown"`
	RiskTags          RiskTags                  `json:"risk_tags"`
	Benchmark         Benchmark                 `json:"benchmark"`
	Forecast          *ForecastResult           `json:"forecast"`
}

// HeatmapPoint is one visualization sample drawn from the benchmark grid.
// Intensity is normalized to [0,1].
type HeatmapPoint struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Intensity float64 `json:"intensity"`
}
