package tokenizer

import "strings"

// ModelPricing holds the per-million-token costs for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Pricing maps model identifiers to their token pricing.
var Pricing = map[string]ModelPricing{
	"gpt-4o":       {2.50, 10.00},
	"gpt-4o-mini":  {0.15, 0.60},
	"gpt-4-turbo":  {10.00, 30.00},
	"gpt-4.1":      {2.00, 8.00},
	"gpt-4.1-mini": {0.40, 1.60},
}

// GetPricing returns the pricing for the given model. It first attempts an
// exact match, then falls back to a prefix match against known model names.
// The second return value indicates whether pricing was found.
func GetPricing(model string) (ModelPricing, bool) {
	// Exact match.
	if p, ok := Pricing[model]; ok {
		return p, true
	}

	// Prefix match for versioned model names like "gpt-4o-mini-2024-07-18"
	// that should map to the base model pricing. Longest prefix wins so
	// "gpt-4o-mini" is preferred over "gpt-4o".
	best := ""
	for name := range Pricing {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return Pricing[best], true
	}

	return ModelPricing{}, false
}

// EstimateCost calculates the estimated cost in USD for the given number of
// input and output tokens on the specified model. Returns 0.0 if the model
// is not found in the pricing table.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := GetPricing(model)
	if !ok {
		return 0.0
	}
	return (float64(tokensIn)*p.InputPerMillion + float64(tokensOut)*p.OutputPerMillion) / 1_000_000
}
