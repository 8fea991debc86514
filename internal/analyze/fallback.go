package analyze

import (
	"regexp"
	"strings"
)

const (
	maxTitleLen     = 60
	maxFallbackTags = 4

	// DefaultCategory is assigned when no category rule matches.
	DefaultCategory = "Creative"
)

// tagRule pairs a content matcher with the tag it produces. Rules are
// evaluated in order; the order is part of the contract.
type tagRule struct {
	pattern *regexp.Regexp
	tag     string
}

var tagRules = []tagRule{
	{regexp.MustCompile(`\b(write|writing|copy|headline|hook)`), "copywriting"},
	{regexp.MustCompile(`\b(code|function|programming|debug|api)`), "coding"},
	{regexp.MustCompile(`\b(image|visual|design|poster|graphic)`), "visual"},
	{regexp.MustCompile(`\b(automat|workflow|script|n8n|zapier)`), "automation"},
	{regexp.MustCompile(`\b(analyz|data|research|insight|report)`), "analysis"},
	{regexp.MustCompile(`\b(creative|brainstorm|idea|concept)`), "creative"},
	{regexp.MustCompile(`\b(email|message|present|communicate)`), "communication"},
	{regexp.MustCompile(`\b(explain|teach|learn|tutorial|summary)`), "learning"},
	{regexp.MustCompile(`\b(market|brand|advertis|campaign|social)`), "marketing"},
	{regexp.MustCompile(`\b(seo|keyword|search|rank)`), "seo"},
}

// categoryRules map content patterns to category names, first match
// wins.
var categoryRules = []tagRule{
	{regexp.MustCompile(`\b(code|function|programming|debug|api|javascript|python|typescript)`), "Coding"},
	{regexp.MustCompile(`\b(write|copy|headline|hook|ad|marketing|sales)`), "Copywriting"},
	{regexp.MustCompile(`\b(image|visual|design|poster|graphic|art|creative)`), "Creative"},
	{regexp.MustCompile(`\b(automat|workflow|script|integration)`), "Automation"},
	{regexp.MustCompile(`\b(analyz|data|research|insight|report)`), "Analysis"},
	{regexp.MustCompile(`\b(email|message|present|communicate)`), "Communication"},
	{regexp.MustCompile(`\b(explain|teach|learn|tutorial|summary)`), "Learning"},
}

// fallbackTitle derives a title from the first line of content,
// truncated to 60 characters with an ellipsis marker. Truncation
// counts runes so multibyte first lines stay valid UTF-8.
func fallbackTitle(content string) string {
	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	runes := []rune(firstLine)
	if len(runes) <= maxTitleLen {
		return firstLine
	}
	return string(runes[:maxTitleLen-3]) + "..."
}

// fallbackTags derives tags from the prompt source and the ordered
// content rules, capped at 4.
func fallbackTags(content, source string) []string {
	var tags []string
	lower := strings.ToLower(content)

	// Source-based tag first.
	if source != "" && source != "other" {
		tags = append(tags, strings.ReplaceAll(source, "_", "-"))
	}

	for _, rule := range tagRules {
		if len(tags) >= maxFallbackTags {
			break
		}
		if rule.pattern.MatchString(lower) && !contains(tags, rule.tag) {
			tags = append(tags, rule.tag)
		}
	}

	return tags
}

// detectCategory returns the first matching category rule, defaulting
// to DefaultCategory.
func detectCategory(content string) string {
	lower := strings.ToLower(content)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(lower) {
			return rule.tag
		}
	}
	return DefaultCategory
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Fallback produces a deterministic analysis without calling the
// provider.
func Fallback(content, source string) *Result {
	return &Result{
		Title:     fallbackTitle(content),
		Tags:      fallbackTags(content, source),
		Category:  detectCategory(content),
		AIPowered: false,
	}
}
