package forecast

import (
	"context"
	"fmt"
	"math"

	"app/models"
)

// Defaults for optional pricing request fields.
const (
	defaultNSteps            = 50
	defaultMaxPriceChangePct = 0.08
	defaultMinMarginPct      = 0.15
	defaultSmoothingAlpha    = 0.3
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// overridePriceFeatures rewrites the price-dependent features of a baseline
// row for a candidate price, relative to the baseline rolling-average price
// and base price.
func overridePriceFeatures(base Row, price, basePrice, baseRollingMeanPrice float64) Row {
	row := base
	row.Price = price
	row.LogPrice = math.Log(math.Max(price, 1e-8))
	row.PriceVsAvg30 = price / baseRollingMeanPrice
	if basePrice > 0 {
		row.PriceChangePct = (price - basePrice) / basePrice
	} else {
		row.PriceChangePct = 0
	}
	return row
}

// OptimizePrice grid-searches candidate prices against the active model,
// applies the business constraints (max price swing, minimum margin) and
// smooths the result toward the current price.
func (s *Service) OptimizePrice(ctx context.Context, req models.PricingOptimizeRequest) (*models.PricingOptimizeResponse, error) {
	nSteps := defaultNSteps
	if req.NSteps != nil {
		nSteps = *req.NSteps
	}
	maxPriceChangePct := defaultMaxPriceChangePct
	if req.MaxPriceChangePct != nil {
		maxPriceChangePct = *req.MaxPriceChangePct
	}
	minMarginPct := defaultMinMarginPct
	if req.MinMarginPct != nil {
		minMarginPct = *req.MinMarginPct
	}
	smoothingAlpha := defaultSmoothingAlpha
	if req.SmoothingAlpha != nil {
		smoothingAlpha = *req.SmoothingAlpha
	}

	if req.ProductID == "" {
		return nil, fmt.Errorf("%w: product_id is required", ErrInvalidParameter)
	}
	if req.PriceMin >= req.PriceMax {
		return nil, fmt.Errorf("%w: price_min must be less than price_max", ErrInvalidParameter)
	}
	if nSteps < 2 {
		return nil, fmt.Errorf("%w: n_steps must be >= 2", ErrInvalidParameter)
	}
	if maxPriceChangePct < 0 {
		return nil, fmt.Errorf("%w: max_price_change_pct must be >= 0", ErrInvalidParameter)
	}
	if minMarginPct < 0 {
		return nil, fmt.Errorf("%w: min_margin_pct must be >= 0", ErrInvalidParameter)
	}
	if smoothingAlpha < 0 || smoothingAlpha > 1 {
		return nil, fmt.Errorf("%w: smoothing_alpha must be between 0 and 1", ErrInvalidParameter)
	}

	productID := resolveProduct(req.ProductID)

	path, err := s.repo.GetActiveModelPath(ctx)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no trained model available", ErrModelUnavailable)
	}
	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}

	// 90 days of history so lag_30 rows survive feature engineering
	facts, err := s.repo.GetLatestSales(ctx, []string{productID}, 90)
	if err != nil {
		return nil, err
	}
	facts = AggregateByDate(facts)
	rows := EngineerFeatures(facts)
	if len(rows) < 30 {
		return nil, fmt.Errorf("%w: need at least 30 days of usable history", ErrInsufficientData)
	}

	base := rows[len(rows)-1]
	basePrice := base.Price
	baseRollingMeanPrice := base.RollingMeanPrice30
	if math.IsNaN(baseRollingMeanPrice) || baseRollingMeanPrice <= 0 {
		if basePrice > 0 {
			baseRollingMeanPrice = basePrice
		} else {
			baseRollingMeanPrice = 1.0
		}
	}

	baseQty := Predict(model, rows[len(rows)-1:])[0]
	if baseQty < 0 {
		baseQty = 0
	}
	currentRevenue := basePrice * baseQty
	currentProfit := (basePrice - req.Cost) * baseQty

	predictAt := func(price float64) float64 {
		row := overridePriceFeatures(base, price, basePrice, baseRollingMeanPrice)
		qty := Predict(model, []Row{row})[0]
		if qty < 0 {
			qty = 0
		}
		return qty
	}

	scenarios := make([]models.PriceScenario, 0, nSteps)
	rawOptimalPrice := basePrice
	bestProfit := math.Inf(-1)
	for i := 0; i < nSteps; i++ {
		p := req.PriceMin + (req.PriceMax-req.PriceMin)*float64(i)/float64(nSteps-1)
		qty := predictAt(p)
		revenue := p * qty
		profit := (p - req.Cost) * qty
		scenarios = append(scenarios, models.PriceScenario{
			Price:    round2(p),
			Quantity: round2(qty),
			Revenue:  round2(revenue),
			Profit:   round2(profit),
		})
		if profit > bestProfit {
			bestProfit = profit
			rawOptimalPrice = p
		}
	}

	// business constraints: swing clamp first, then the margin floor,
	// which may push the result above the swing ceiling
	allowedMin, allowedMax := req.PriceMin, req.PriceMax
	if basePrice > 0 {
		allowedMin = basePrice * (1.0 - maxPriceChangePct)
		allowedMax = basePrice * (1.0 + maxPriceChangePct)
	}
	constrainedPrice := math.Max(math.Min(rawOptimalPrice, allowedMax), allowedMin)
	if minAllowedPrice := req.Cost * (1.0 + minMarginPct); constrainedPrice < minAllowedPrice {
		constrainedPrice = minAllowedPrice
	}

	finalPrice := (1.0-smoothingAlpha)*basePrice + smoothingAlpha*constrainedPrice
	finalQty := predictAt(finalPrice)
	finalRevenue := finalPrice * finalQty
	finalProfit := (finalPrice - req.Cost) * finalQty

	priceChangePct := 0.0
	if basePrice > 0 {
		priceChangePct = (finalPrice - basePrice) / basePrice * 100
	}

	return &models.PricingOptimizeResponse{
		CurrentState: models.PriceState{
			Price:        round2(basePrice),
			QuantityPred: round2(baseQty),
			Revenue:      round2(currentRevenue),
			Profit:       round2(currentProfit),
		},
		Recommendation: models.PriceRecommendation{
			RawOptimalPrice:    round2(rawOptimalPrice),
			ConstrainedPrice:   round2(constrainedPrice),
			FinalSmoothedPrice: round2(finalPrice),
			ExpectedQuantity:   round2(finalQty),
			ExpectedRevenue:    round2(finalRevenue),
			ExpectedProfit:     round2(finalProfit),
		},
		RiskMetrics: models.PriceRiskMetrics{
			PriceChangePct: round2(priceChangePct),
			ProfitDelta:    round2(finalProfit - currentProfit),
			RevenueDelta:   round2(finalRevenue - currentRevenue),
		},
		Constraints: models.PriceConstraints{
			MaxPriceChangePct: maxPriceChangePct,
			MinMarginPct:      minMarginPct,
			SmoothingAlpha:    smoothingAlpha,
		},
		ElasticityImplicit: "model-based",
		Scenarios:          scenarios,
	}, nil
}
