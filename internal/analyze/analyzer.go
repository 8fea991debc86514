package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/cache"
	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/quota"
	"github.com/promptvaultdev/promptvault/internal/store"
	"github.com/promptvaultdev/promptvault/internal/tokenizer"
	"github.com/promptvaultdev/promptvault/internal/vault"
)

// Result is what an analysis produces: suggested metadata for a prompt.
type Result struct {
	Title               string   `json:"title"`
	Tags                []string `json:"tags"`
	Category            string   `json:"category"`
	CategoryID          string   `json:"category_id,omitempty"`
	EffectivenessScore  int      `json:"effectiveness_score,omitempty"`
	EffectivenessReason string   `json:"effectiveness_reason,omitempty"`
	AIPowered           bool     `json:"ai_powered"`
	CacheHit            bool     `json:"cache_hit,omitempty"`
	Message             string   `json:"message,omitempty"`

	// QuotaDenied marks a fallback served because the meter refused a
	// provider call. Transports decide how to surface it.
	QuotaDenied bool `json:"-"`
}

// Meter is consulted before each provider call. Cache hits and
// fallback analyses never reach it, so they stay free of charge.
type Meter interface {
	CheckAndConsume(accountID string) (*quota.Decision, error)
}

// Analyzer runs prompt analysis: provider-backed when a credential is
// configured, deterministic fallback otherwise. Provider failures never
// surface to callers; they degrade to the fallback path.
type Analyzer struct {
	store          *store.Store
	provider       Provider
	meter          Meter
	cache          *cache.Cache
	breaker        *CircuitBreaker
	tok            *tokenizer.Tokenizer
	model          string
	maxInputTokens int
}

// New builds an Analyzer from configuration. A missing or unresolvable
// provider credential is not an error: the analyzer runs in
// fallback-only mode. A nil meter disables usage accounting.
func New(st *store.Store, v *vault.Vault, m Meter, cfg *config.Config) (*Analyzer, error) {
	a := &Analyzer{
		store:          st,
		meter:          m,
		tok:            tokenizer.New(),
		model:          cfg.Analysis.Model,
		maxInputTokens: cfg.Analysis.MaxInputTokens,
	}

	c, err := cache.New(storeBackend{st: st}, cfg.Analysis.CacheTTLSeconds, cfg.Analysis.CacheSize)
	if err != nil {
		return nil, err
	}
	a.cache = c

	if cfg.Resilience.CBEnabled {
		a.breaker = NewCircuitBreaker(
			cfg.Resilience.CBFailureThreshold,
			time.Duration(cfg.Resilience.CBResetTimeoutSec)*time.Second,
			cfg.Resilience.CBHalfOpenMax,
		)
	}

	if cfg.Analysis.Enabled {
		key, err := v.ResolveKeyRef(cfg.Analysis.KeyRef)
		if err != nil || key == "" {
			log.Info().Msg("analyze: no provider credential, using fallback analysis")
		} else {
			a.provider = newOpenAIProvider(key, cfg.Analysis.APIBase, cfg.Analysis.Model, cfg.Analysis.TimeoutDuration())
		}
	}

	return a, nil
}

// SetProvider swaps the analysis backend. Used by tests.
func (a *Analyzer) SetProvider(p Provider) {
	a.provider = p
}

// AIEnabled reports whether a provider credential is configured.
func (a *Analyzer) AIEnabled() bool {
	return a.provider != nil
}

// StartPurger starts the background cache purger. The returned channel
// closes when the purger exits.
func (a *Analyzer) StartPurger(ctx context.Context) <-chan struct{} {
	return a.cache.StartPurger(ctx)
}

// providerPayload is the JSON shape the provider is instructed to emit.
type providerPayload struct {
	Title               string   `json:"title"`
	Tags                []string `json:"tags"`
	Category            string   `json:"category"`
	EffectivenessScore  int      `json:"effectiveness_score"`
	EffectivenessReason string   `json:"effectiveness_reason"`
}

// Analyze produces metadata suggestions for the given prompt content.
// The error return is reserved for storage failures; provider problems
// degrade to the fallback result.
func (a *Analyzer) Analyze(ctx context.Context, accountID, content, source string) (*Result, error) {
	start := time.Now()

	if a.provider == nil {
		res := Fallback(content, source)
		res.Message = "basic analysis (no provider credential configured)"
		a.resolveCategoryID(res)
		a.record(accountID, source, res, 0, 0, start, "")
		return res, nil
	}

	clamped := a.tok.Clamp(a.model, content, a.maxInputTokens)
	key := cache.Key(a.model, source, clamped)

	if entry, ok := a.cache.Get(key); ok {
		res := &Result{}
		if err := json.Unmarshal(entry.Body, res); err == nil {
			res.CacheHit = true
			a.resolveCategoryID(res)
			a.record(accountID, source, res, 0, 0, start, "")
			return res, nil
		}
	}

	if a.breaker != nil && !a.breaker.Allow() {
		res := Fallback(content, source)
		res.Message = "analysis provider temporarily unavailable"
		a.resolveCategoryID(res)
		a.record(accountID, source, res, 0, 0, start, "circuit open")
		return res, nil
	}

	// Only an actual provider call consumes allowance.
	if a.meter != nil {
		decision, err := a.meter.CheckAndConsume(accountID)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			res := Fallback(content, source)
			res.Message = "monthly AI analysis limit reached"
			res.QuotaDenied = true
			a.resolveCategoryID(res)
			a.record(accountID, source, res, 0, 0, start, "quota exhausted")
			return res, nil
		}
	}

	system, err := a.buildInstruction(source)
	if err != nil {
		return nil, err
	}
	user := fmt.Sprintf("Analyze this prompt:\n\n%s", clamped)

	body, tokensIn, tokensOut, err := a.provider.Complete(ctx, system, user)
	if err != nil {
		if a.breaker != nil {
			a.breaker.RecordFailure()
		}
		log.Warn().Err(err).Msg("analyze: provider call failed")
		res := Fallback(content, source)
		res.Message = "analysis failed, using basic analysis"
		a.resolveCategoryID(res)
		a.record(accountID, source, res, 0, 0, start, err.Error())
		return res, nil
	}

	var payload providerPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		if a.breaker != nil {
			a.breaker.RecordFailure()
		}
		log.Warn().Err(err).Msg("analyze: unparseable provider response")
		res := Fallback(content, source)
		res.Message = "analysis failed, using basic analysis"
		a.resolveCategoryID(res)
		a.record(accountID, source, res, tokensIn, tokensOut, start, "unparseable response")
		return res, nil
	}

	if a.breaker != nil {
		a.breaker.RecordSuccess()
	}

	res := &Result{
		Title:               payload.Title,
		Tags:                payload.Tags,
		Category:            payload.Category,
		EffectivenessScore:  payload.EffectivenessScore,
		EffectivenessReason: payload.EffectivenessReason,
		AIPowered:           true,
	}
	if res.Title == "" {
		res.Title = fallbackTitle(content)
	}
	a.resolveCategoryID(res)

	if cached, err := json.Marshal(res); err == nil {
		a.cache.Put(key, cached, a.model)
	}

	a.record(accountID, source, res, tokensIn, tokensOut, start, "")
	return res, nil
}

// buildInstruction assembles the system instruction, embedding current
// category names and a sample of existing tags for vocabulary
// consistency.
func (a *Analyzer) buildInstruction(source string) (string, error) {
	categories, err := a.store.ListCategories()
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}

	tagNames, err := a.store.TagNames(20)
	if err != nil {
		return "", err
	}

	if source == "" {
		source = "unknown AI tool"
	}

	return fmt.Sprintf(`You are an expert prompt analyst. Analyze the given prompt and provide:
1. A concise, descriptive title (max 60 characters)
2. 3-5 relevant tags (lowercase, single words or hyphenated)
3. The best matching category from: %s
4. An effectiveness score (1-10) based on clarity, specificity, and likely results
5. A brief reason for your effectiveness score

Consider existing tags for consistency: %s

The prompt was written for: %s

Respond in JSON format only:
{
  "title": "string",
  "tags": ["tag1", "tag2", "tag3"],
  "category": "Category Name",
  "effectiveness_score": number,
  "effectiveness_reason": "string"
}`, strings.Join(names, ", "), strings.Join(tagNames, ", "), source), nil
}

// resolveCategoryID maps the suggested category name onto a stored
// category id, case-insensitively. Unknown names leave the id empty.
func (a *Analyzer) resolveCategoryID(res *Result) {
	if res.Category == "" {
		return
	}
	categories, err := a.store.ListCategories()
	if err != nil {
		return
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, res.Category) {
			res.CategoryID = c.ID
			return
		}
	}
}

// record writes one analysis_log row. Logging failures are reported but
// never fail the analysis.
func (a *Analyzer) record(accountID, source string, res *Result, tokensIn, tokensOut int, start time.Time, errMsg string) {
	rec := &store.AnalysisRecord{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		AccountID:    accountID,
		Model:        a.model,
		Source:       source,
		TokensIn:     int64(tokensIn),
		TokensOut:    int64(tokensOut),
		CostUSD:      tokenizer.EstimateCost(a.model, tokensIn, tokensOut),
		LatencyMs:    time.Since(start).Milliseconds(),
		AIPowered:    res.AIPowered,
		CacheHit:     res.CacheHit,
		ErrorMessage: errMsg,
	}
	if err := a.store.InsertAnalysisRecord(rec); err != nil {
		log.Warn().Err(err).Msg("analyze: recording analysis failed")
	}
}
