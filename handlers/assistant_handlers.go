package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"app/config"
	"app/models"
	"app/utils"
)

// HandleAssistantAsk answers analytics questions over the forecasting tools.
// POST /api/v1/assistant/ask
func HandleAssistantAsk(c *fiber.Ctx) error {
	var req models.AIAssistantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	// 1. Classify the user's intent
	intent, err := classifyIntent(req.Prompt)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	// 2. Fetch data based on the intent
	data, err := fetchDataForIntent(c.Context(), intent, req.Prompt)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	// 3. Generate a human-readable analysis
	analysis, err := generateAnalysis(req.Prompt, intent, data)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	return c.JSON(fiber.Map{"success": true, "intent": intent, "analysis": analysis})
}

// classifyIntent uses Gemini to determine the user's intent.
func classifyIntent(prompt string) (string, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		return "", fmt.Errorf("failed to create AI client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-1.5-pro")
	classificationPrompt := fmt.Sprintf(
		`You are an intent classification system. Classify the user's prompt into one of the following categories: 'forecast', 'price_scenario', 'backtest', or 'unknown'. The user prompt is: "%s"`,
		prompt,
	)

	resp, err := model.GenerateContent(ctx, genai.Text(classificationPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to classify intent: %w", err)
	}

	intent := strings.TrimSpace(fmt.Sprint(resp.Candidates[0].Content.Parts[0]))
	if intent == "forecast" || intent == "price_scenario" || intent == "backtest" {
		return intent, nil
	}
	return "unknown", nil
}

// extractToolArgs uses Gemini to pull product/date/delta parameters out of
// the prompt as JSON; missing values fall back to defaults.
func extractToolArgs(prompt string) models.AssistantToolArgs {
	args := models.AssistantToolArgs{
		ProductID: "P0001",
		FromDate:  utils.FormatDate(time.Now().UTC()),
		ToDate:    utils.FormatDate(time.Now().UTC().AddDate(0, 0, 7)),
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Printf("Error creating AI client for extraction: %v", err)
		return args
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-1.5-pro")
	extractionPrompt := fmt.Sprintf(
		`Extract parameters from the user's prompt as JSON with keys "product_id", "from_date" (YYYY-MM-DD), "to_date" (YYYY-MM-DD) and "price_delta_pct" (number, e.g. 5 for +5%%). Omit keys you cannot determine. Answer with JSON only, no markdown. The user prompt is: "%s"`,
		prompt,
	)
	resp, err := model.GenerateContent(ctx, genai.Text(extractionPrompt))
	if err != nil {
		log.Printf("Error extracting tool args: %v", err)
		return args
	}

	raw := strings.TrimSpace(fmt.Sprint(resp.Candidates[0].Content.Parts[0]))
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var extracted map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &extracted); err != nil {
		log.Printf("Error parsing extracted args: %v", err)
		return args
	}
	if v, ok := extracted["product_id"].(string); ok && v != "" {
		args.ProductID = v
	}
	if v, ok := extracted["from_date"].(string); ok && v != "" {
		args.FromDate = v
	}
	if v, ok := extracted["to_date"].(string); ok && v != "" {
		args.ToDate = v
	}
	args.PriceDeltaPct = utils.SafeFloat(extracted["price_delta_pct"], 0)
	return args
}

// fetchDataForIntent calls the matching forecasting operation.
func fetchDataForIntent(ctx context.Context, intent, prompt string) (interface{}, error) {
	if intent == "unknown" {
		return nil, nil
	}

	args := extractToolArgs(prompt)
	fromDate, err := utils.ParseDate(args.FromDate)
	if err != nil {
		fromDate = time.Now().UTC()
	}
	toDate, err := utils.ParseDate(args.ToDate)
	if err != nil {
		toDate = fromDate.AddDate(0, 0, 7)
	}

	service := getForecastService()
	switch intent {
	case "forecast":
		points, version, err := service.GetForecast(ctx, args.ProductID, fromDate, toDate)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch forecast: %w", err)
		}
		return fiber.Map{
			"product_id":    args.ProductID,
			"model_version": version,
			"points":        points,
		}, nil

	case "price_scenario":
		result, err := service.ScenarioPriceChange(ctx, args.ProductID, fromDate, toDate, args.PriceDeltaPct)
		if err != nil {
			return nil, fmt.Errorf("failed to compute scenario: %w", err)
		}
		return result, nil

	case "backtest":
		result, err := service.RunBacktest(ctx, args.ProductID, fromDate, toDate, 90, 7)
		if err != nil {
			return nil, fmt.Errorf("failed to run backtest: %w", err)
		}
		return result, nil
	}

	return nil, nil
}

// generateAnalysis uses Gemini to create a human-readable analysis.
func generateAnalysis(originalPrompt, intent string, data interface{}) (string, error) {
	if intent == "unknown" {
		return "Sorry, I can't answer that question yet. Try asking about forecasts, price change scenarios, or backtest accuracy.", nil
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		return "", fmt.Errorf("failed to create AI client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-1.5-pro")

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize data: %w", err)
	}

	analysisPrompt := fmt.Sprintf(
		`You are a helpful AI assistant for a retail business. The user asked: "%s". The intent of the query was determined to be '%s'. Based on the following data, provide a concise and helpful analysis. If the data is empty, explain that there is no data for the request:

		Data: %s`,
		originalPrompt,
		intent,
		string(jsonData),
	)

	resp, err := model.GenerateContent(ctx, genai.Text(analysisPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate analysis: %w", err)
	}

	return fmt.Sprint(resp.Candidates[0].Content.Parts[0]), nil
}
