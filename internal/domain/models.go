package domain

import (
	"fmt"
	"math"
)

// USDToJPY is the fixed conversion rate used for cost estimates
const USDToJPY = 150.0

// ModelInfo describes a supported LLM and its pricing in USD per 1M tokens.
// Speed and Quality are 1-5 ratings, 5 being fastest / best.
type ModelInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	InputPrice  float64 `json:"inputPrice"`
	OutputPrice float64 `json:"outputPrice"`
	Speed       int     `json:"speed"`
	Quality     int     `json:"quality"`
}

// AvailableModels lists the models a note may be generated with
var AvailableModels = []ModelInfo{
	{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Description: "バランス型", InputPrice: 0.40, OutputPrice: 1.60, Speed: 4, Quality: 3},
	{ID: "gpt-4.1-nano", Name: "GPT-4.1 Nano", Description: "最速・最安", InputPrice: 0.10, OutputPrice: 0.40, Speed: 5, Quality: 2},
	{ID: "gpt-5-mini", Name: "GPT-5 Mini", Description: "高品質", InputPrice: 1.10, OutputPrice: 4.40, Speed: 3, Quality: 5},
	{ID: "gpt-5-nano", Name: "GPT-5 Nano", Description: "高速・高品質", InputPrice: 0.30, OutputPrice: 1.20, Speed: 4, Quality: 4},
}

// DefaultModel is used when a request does not name one
const DefaultModel = "gpt-4.1-mini"

// FindModel looks up a model by ID
func FindModel(id string) (ModelInfo, bool) {
	for _, m := range AvailableModels {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// ResolveModel maps an empty ID to DefaultModel and rejects unknown IDs
func ResolveModel(id string) (ModelInfo, error) {
	if id == "" {
		id = DefaultModel
	}
	m, ok := FindModel(id)
	if !ok {
		return ModelInfo{}, NewValidationError("model", fmt.Sprintf("unsupported model %q", id), id)
	}
	return m, nil
}

// TokenUsage reports token counts and the estimated cost of one LLM call
type TokenUsage struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	EstimatedCostUSD float64 `json:"estimatedCostUSD"`
	EstimatedCostJPY float64 `json:"estimatedCostJPY"`
}

// EstimateUsage prices prompt and completion tokens for the given model.
// USD is rounded to 6 decimals, JPY to 2.
func EstimateUsage(model ModelInfo, promptTokens, completionTokens int) TokenUsage {
	usd := float64(promptTokens)/1_000_000*model.InputPrice +
		float64(completionTokens)/1_000_000*model.OutputPrice

	return TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		EstimatedCostUSD: roundTo(usd, 6),
		EstimatedCostJPY: roundTo(usd*USDToJPY, 2),
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
