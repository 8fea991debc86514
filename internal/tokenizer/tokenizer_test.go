package tokenizer

import (
	"testing"
)

func TestCountTokens_NonZeroForKnownText(t *testing.T) {
	tok := New()
	text := "Hello, world! This is a test of the tokenizer."
	count := tok.CountTokens("gpt-4o-mini", text)
	if count == 0 {
		t.Errorf("CountTokens returned 0 for known text %q; want non-zero", text)
	}
}

func TestCountTokens_ZeroForEmptyText(t *testing.T) {
	tok := New()
	count := tok.CountTokens("gpt-4o-mini", "")
	if count != 0 {
		t.Errorf("CountTokens returned %d for empty text; want 0", count)
	}
}

func TestGetEncoding_Cl100kForGPT4(t *testing.T) {
	tok := New()
	for _, model := range []string{"gpt-4", "gpt-4-turbo"} {
		enc := tok.GetEncoding(model)
		if enc != "cl100k_base" {
			t.Errorf("GetEncoding(%q) = %q; want %q", model, enc, "cl100k_base")
		}
	}
}

func TestGetEncoding_O200kForGPT4oMini(t *testing.T) {
	tok := New()
	enc := tok.GetEncoding("gpt-4o-mini")
	if enc != "o200k_base" {
		t.Errorf("GetEncoding(\"gpt-4o-mini\") = %q; want %q", enc, "o200k_base")
	}
}

func TestGetEncoding_O200kForUnknownModels(t *testing.T) {
	tok := New()
	unknowns := []string{
		"some-random-model",
		"llama-3-70b",
		"mistral-7b",
	}
	for _, model := range unknowns {
		enc := tok.GetEncoding(model)
		if enc != "o200k_base" {
			t.Errorf("GetEncoding(%q) = %q; want %q", model, enc, "o200k_base")
		}
	}
}

func TestGetEncoding_PrefixMatchForVersionedModelNames(t *testing.T) {
	tok := New()

	tests := []struct {
		model    string
		expected string
	}{
		{"gpt-4o-mini-2024-07-18-preview", "o200k_base"},
		{"gpt-4-turbo-2024-04-09", "cl100k_base"},
	}

	for _, tt := range tests {
		enc := tok.GetEncoding(tt.model)
		if enc != tt.expected {
			t.Errorf("GetEncoding(%q) = %q; want %q (prefix match)", tt.model, enc, tt.expected)
		}
	}
}

func TestClamp_WithinBudgetUnchanged(t *testing.T) {
	tok := New()
	text := "short prompt"
	if got := tok.Clamp("gpt-4o-mini", text, 100); got != text {
		t.Errorf("Clamp changed text within budget: %q", got)
	}
}

func TestClamp_TruncatesOverBudget(t *testing.T) {
	tok := New()
	long := ""
	for i := 0; i < 200; i++ {
		long += "write a detailed marketing plan "
	}

	clamped := tok.Clamp("gpt-4o-mini", long, 50)
	if clamped == long {
		t.Fatal("Clamp did not truncate oversized text")
	}
	if got := tok.CountTokens("gpt-4o-mini", clamped); got > 50 {
		t.Errorf("clamped text counts %d tokens; want <= 50", got)
	}
}

func TestClamp_ZeroBudgetDisablesClamping(t *testing.T) {
	tok := New()
	text := "anything at all"
	if got := tok.Clamp("gpt-4o-mini", text, 0); got != text {
		t.Errorf("Clamp with zero budget changed text: %q", got)
	}
}

func TestGetPricing_ExactAndPrefix(t *testing.T) {
	p, ok := GetPricing("gpt-4o-mini")
	if !ok || p.InputPerMillion != 0.15 {
		t.Errorf("GetPricing(gpt-4o-mini) = %+v, %v", p, ok)
	}

	// Versioned name resolves to the longest matching base model.
	p, ok = GetPricing("gpt-4o-mini-2024-07-18")
	if !ok || p.InputPerMillion != 0.15 {
		t.Errorf("GetPricing(versioned) = %+v, %v", p, ok)
	}

	if _, ok := GetPricing("unknown-model"); ok {
		t.Error("GetPricing found pricing for unknown model")
	}
}

func TestEstimateCost(t *testing.T) {
	// 1M input + 1M output on gpt-4o-mini is 0.15 + 0.60 USD.
	got := EstimateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	want := 0.75
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("EstimateCost: got %f, want %f", got, want)
	}

	if got := EstimateCost("unknown-model", 1000, 1000); got != 0.0 {
		t.Errorf("EstimateCost for unknown model: got %f, want 0", got)
	}
}
