package models

import "time"

// SalesFact represents one historical sales observation for a product on a date.
type SalesFact struct {
	ID         int64     `json:"id"`
	ProductID  string    `json:"product_id"`
	Date       time.Time `json:"date"`
	Quantity   float64   `json:"quantity"`
	Revenue    float64   `json:"revenue"`
	Price      *float64  `json:"price,omitempty"`
	PromoFlag  bool      `json:"promo_flag"`
	CategoryID *string   `json:"category_id,omitempty"`
	Source     *string   `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ModelArtifact is the stored metadata for one trained model version.
// Artifacts are immutable after creation; only the is_active flag flips.
type ModelArtifact struct {
	ID        int64     `json:"id"`
	Version   string    `json:"version"`
	FilePath  string    `json:"file_path"`
	TrainedAt time.Time `json:"trained_at"`
	DataFrom  time.Time `json:"data_from"`
	DataTo    time.Time `json:"data_to"`
	MAE       float64   `json:"mae"`
	MAPE      float64   `json:"mape"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ForecastPoint is a single predicted data point.
type ForecastPoint struct {
	Date              string   `json:"date"`
	ProductID         string   `json:"product_id"`
	PredictedQuantity float64  `json:"predicted_quantity"`
	PredictedRevenue  *float64 `json:"predicted_revenue,omitempty"`
	ConfidenceLower   *float64 `json:"confidence_lower,omitempty"`
	ConfidenceUpper   *float64 `json:"confidence_upper,omitempty"`
}

// ForecastResponse is the payload returned by the forecast endpoint.
type ForecastResponse struct {
	ProductID    string          `json:"product_id"`
	FromDate     string          `json:"from_date"`
	ToDate       string          `json:"to_date"`
	Points       []ForecastPoint `json:"points"`
	ModelVersion string          `json:"model_version,omitempty"`
}

// ScenarioPriceChangeRequest asks for a forecast under a hypothetical price change.
type ScenarioPriceChangeRequest struct {
	ProductID     string  `json:"product_id"`
	FromDate      string  `json:"from_date"`
	ToDate        string  `json:"to_date"`
	PriceDeltaPct float64 `json:"price_delta_pct"`
}

// ScenarioPriceChangeResponse compares base and scenario forecasts.
type ScenarioPriceChangeResponse struct {
	ProductID              string          `json:"product_id"`
	FromDate               string          `json:"from_date"`
	ToDate                 string          `json:"to_date"`
	PriceDeltaPct          float64         `json:"price_delta_pct"`
	BaseForecastPoints     []ForecastPoint `json:"base_forecast_points"`
	ScenarioForecastPoints []ForecastPoint `json:"scenario_forecast_points"`
	DeltaRevenuePct        *float64        `json:"delta_revenue_pct,omitempty"`
	DeltaQuantityPct       *float64        `json:"delta_quantity_pct,omitempty"`
}

// TrainResult is returned after a successful training run.
type TrainResult struct {
	Version    string  `json:"version"`
	MAE        float64 `json:"mae"`
	MAPE       float64 `json:"mape"`
	ArtifactID int64   `json:"artifact_id"`
}

// BacktestResult holds rolling-backtest accuracy metrics.
// MAE/MAPE are nil when there was not enough data or no trained model;
// Message explains why.
type BacktestResult struct {
	MAE          *float64 `json:"mae"`
	MAPE         *float64 `json:"mape"`
	ProductID    string   `json:"product_id,omitempty"`
	FromDate     string   `json:"from_date,omitempty"`
	ToDate       string   `json:"to_date,omitempty"`
	NPredictions int      `json:"n_predictions"`
	Message      string   `json:"message,omitempty"`
}

// PricingOptimizeRequest is the request body for the pricing optimize endpoint.
// Pointer fields distinguish "absent" (use the default) from an explicit zero.
type PricingOptimizeRequest struct {
	ProductID         string   `json:"product_id"`
	Cost              float64  `json:"cost"`
	PriceMin          float64  `json:"price_min"`
	PriceMax          float64  `json:"price_max"`
	NSteps            *int     `json:"n_steps,omitempty"`
	MaxPriceChangePct *float64 `json:"max_price_change_pct,omitempty"`
	MinMarginPct      *float64 `json:"min_margin_pct,omitempty"`
	SmoothingAlpha    *float64 `json:"smoothing_alpha,omitempty"`
}

// PriceState is the model's view of a product at one price point.
type PriceState struct {
	Price        float64 `json:"price"`
	QuantityPred float64 `json:"quantity_pred"`
	Revenue      float64 `json:"revenue"`
	Profit       float64 `json:"profit"`
}

// PriceScenario is one candidate price evaluated during optimization.
type PriceScenario struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Revenue  float64 `json:"revenue"`
	Profit   float64 `json:"profit"`
}

// PriceRecommendation carries the raw, constrained and smoothed prices.
type PriceRecommendation struct {
	RawOptimalPrice    float64 `json:"raw_optimal_price"`
	ConstrainedPrice   float64 `json:"constrained_price"`
	FinalSmoothedPrice float64 `json:"final_smoothed_price"`
	ExpectedQuantity   float64 `json:"expected_quantity"`
	ExpectedRevenue    float64 `json:"expected_revenue"`
	ExpectedProfit     float64 `json:"expected_profit"`
}

// PriceRiskMetrics compares the recommendation against the current state.
type PriceRiskMetrics struct {
	PriceChangePct float64 `json:"price_change_pct"`
	ProfitDelta    float64 `json:"profit_delta"`
	RevenueDelta   float64 `json:"revenue_delta"`
}

// PriceConstraints echoes the business constraints that shaped the recommendation.
type PriceConstraints struct {
	MaxPriceChangePct float64 `json:"max_price_change_pct"`
	MinMarginPct      float64 `json:"min_margin_pct"`
	SmoothingAlpha    float64 `json:"smoothing_alpha"`
}

// PricingOptimizeResponse is the full pricing optimization result.
type PricingOptimizeResponse struct {
	CurrentState       PriceState          `json:"current_state"`
	Recommendation     PriceRecommendation `json:"recommendation"`
	RiskMetrics        PriceRiskMetrics    `json:"risk_metrics"`
	Constraints        PriceConstraints    `json:"constraints"`
	ElasticityImplicit string              `json:"elasticity_implicit"`
	Scenarios          []PriceScenario     `json:"scenarios"`
}
