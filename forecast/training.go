package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"app/models"
)

// FeatureCols is the fixed, ordered list of model input columns. It is owned
// here and passed explicitly wherever a feature matrix is built; training and
// inference must agree on it, so the trained copy is embedded in the artifact.
var FeatureCols = []string{
	"dow",
	"day_of_month",
	"month",
	"week_of_year",
	"is_weekend",
	"lag_7",
	"lag_14",
	"lag_30",
	"rolling_mean_7",
	"rolling_mean_30",
	"price",
	"price_change_pct",
	"log_price",
	"price_vs_avg_30",
	"promo_flag",
}

// targetTransformLog1p marks artifacts trained on log1p(quantity).
const targetTransformLog1p = "log1p"

// featureValue reads one named feature from a row. Unknown names return 0,
// never an error: the schema-compatibility shim for artifacts trained under
// a different column list.
func featureValue(r *Row, name string) float64 {
	switch name {
	case "dow":
		return r.Dow
	case "day_of_month":
		return r.DayOfMonth
	case "month":
		return r.Month
	case "week_of_year":
		return r.WeekOfYear
	case "is_weekend":
		return r.IsWeekend
	case "lag_7":
		return r.Lag7
	case "lag_14":
		return r.Lag14
	case "lag_30":
		return r.Lag30
	case "rolling_mean_7":
		return r.RollingMean7
	case "rolling_mean_30":
		return r.RollingMean30
	case "price":
		return r.Price
	case "price_change_pct":
		return r.PriceChangePct
	case "log_price":
		return r.LogPrice
	case "price_vs_avg_30":
		return r.PriceVsAvg30
	case "promo_flag":
		return r.PromoFlag
	default:
		return 0
	}
}

// featureMatrix aligns rows to an ordered column list. This is the single
// align-to-schema step shared by every predict call site: undefined (NaN)
// and unknown values both become 0.
func featureMatrix(rows []Row, cols []string) [][]float64 {
	X := make([][]float64, len(rows))
	for i := range rows {
		x := make([]float64, len(cols))
		for j, c := range cols {
			v := featureValue(&rows[i], c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			x[j] = v
		}
		X[i] = x
	}
	return X
}

// TrainMeta is the training summary persisted next to the model blob and
// recorded as a model artifact.
type TrainMeta struct {
	Version     string    `json:"version"`
	FilePath    string    `json:"file_path"`
	TrainedAt   time.Time `json:"trained_at"`
	DataFrom    time.Time `json:"data_from"`
	DataTo      time.Time `json:"data_to"`
	MAE         float64   `json:"mae"`
	MAPE        float64   `json:"mape"`
	FeatureCols []string  `json:"feature_cols"`
}

// newModelVersion builds a sortable, unique version token: UTC timestamp
// plus a short random suffix.
func newModelVersion(now time.Time) string {
	u := uuid.New()
	return now.UTC().Format("20060102_150405") + "_" + fmt.Sprintf("%x", u[:4])
}

// TrainModel fits the regressor on raw sales facts and persists the model
// blob plus a sidecar meta file under artifactsDir.
//
// The target is log1p(quantity); predictions are inverse-transformed at
// inference time. Training is deterministic for identical input data.
func TrainModel(facts []models.SalesFact, dataFrom, dataTo time.Time, artifactsDir string) (*GBMModel, *TrainMeta, error) {
	if len(facts) < 100 {
		return nil, nil, fmt.Errorf("%w for training (need at least 100 rows)", ErrInsufficientData)
	}
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	rows := EngineerFeatures(facts)
	X := featureMatrix(rows, FeatureCols)
	y := make([]float64, len(rows))
	for i := range rows {
		y[i] = math.Log1p(rows[i].Quantity)
	}

	model := FitGBM(X, y, DefaultGBMParams())
	model.FeatureCols = append([]string(nil), FeatureCols...)
	model.TargetTransform = targetTransformLog1p

	// In-sample fit diagnostics, not held-out accuracy.
	preds := Predict(model, rows)
	var absSum, pctSum float64
	for i := range rows {
		q := rows[i].Quantity
		absSum += math.Abs(preds[i] - q)
		pctSum += math.Abs((preds[i] - q) / (q + 1e-8))
	}
	mae := absSum / float64(len(rows))
	mape := pctSum / float64(len(rows)) * 100

	now := time.Now().UTC()
	version := newModelVersion(now)
	filePath := filepath.Join(artifactsDir, "gbm_"+version+".json")
	if err := SaveModel(model, filePath); err != nil {
		return nil, nil, err
	}

	meta := &TrainMeta{
		Version:     version,
		FilePath:    filePath,
		TrainedAt:   now,
		DataFrom:    dataFrom,
		DataTo:      dataTo,
		MAE:         mae,
		MAPE:        mape,
		FeatureCols: append([]string(nil), FeatureCols...),
	}
	if err := writeMetaSidecar(meta, filePath); err != nil {
		return nil, nil, err
	}
	return model, meta, nil
}

func writeMetaSidecar(meta *TrainMeta, modelPath string) error {
	metaPath := strings.TrimSuffix(modelPath, ".json") + "_meta.json"
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model meta: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model meta: %w", err)
	}
	return nil
}

// Predict runs inference over feature rows and returns quantities in the
// original scale, honoring the contract the model was trained under.
// Negative outputs are possible; call sites requiring non-negativity clamp.
func Predict(m *GBMModel, rows []Row) []float64 {
	cols := m.FeatureCols
	if len(cols) == 0 {
		cols = FeatureCols
	}
	X := featureMatrix(rows, cols)
	raw := m.PredictRaw(X)
	if m.TargetTransform == targetTransformLog1p {
		for i := range raw {
			raw[i] = expm1(raw[i])
		}
	}
	return raw
}
