package forecast

import "errors"

// Error taxonomy for the forecasting core. Handlers map all three to 400
// responses with the wrapped detail message; genuinely empty results are
// not errors and come back as empty structures instead.
var (
	// ErrInsufficientData means too few rows for training, backtesting or
	// optimization. Recoverable: widen the range or wait for more data.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelUnavailable means no active model artifact exists or its file
	// is missing/corrupt on disk. Recoverable once training completes.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInvalidParameter means a constraint violation in the request.
	ErrInvalidParameter = errors.New("invalid parameter")
)
