package models

// AIAssistantRequest defines the structure for requests to the AI assistant.
type AIAssistantRequest struct {
	Prompt string `json:"prompt"`
}

// AssistantToolArgs are the parameters the assistant extracts from a prompt
// before calling a forecasting tool.
type AssistantToolArgs struct {
	ProductID     string  `json:"product_id"`
	FromDate      string  `json:"from_date"`
	ToDate        string  `json:"to_date"`
	PriceDeltaPct float64 `json:"price_delta_pct"`
}
