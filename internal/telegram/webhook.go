package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/analyze"
	"github.com/promptvaultdev/promptvault/internal/prompts"
)

const (
	searchLimit   = 5
	searchPreview = 100
	recentPreview = 80
)

// update is the subset of a Telegram update the handler reads.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// Handler processes webhook updates from the Bot API. Internal
// failures become chat replies; the HTTP response is 200 regardless so
// Telegram does not retry the update.
type Handler struct {
	bot        *Bot
	svc        *prompts.Service
	analyzer   *analyze.Analyzer
	ownerEmail string
	secret     string

	onCommand func(cmd string)
}

// NewHandler wires the webhook handler. Saved prompts land in the
// owner account's library.
func NewHandler(bot *Bot, svc *prompts.Service, analyzer *analyze.Analyzer, ownerEmail, secret string) *Handler {
	return &Handler{
		bot:        bot,
		svc:        svc,
		analyzer:   analyzer,
		ownerEmail: ownerEmail,
		secret:     secret,
	}
}

// OnCommand registers a callback invoked once per handled command,
// with the command name ("/save", "/search", ...).
func (h *Handler) OnCommand(fn func(cmd string)) {
	h.onCommand = fn
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
	}

	defer func() {
		// Telegram retries anything but 200, so the body is always ok.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}()

	var u update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		log.Warn().Err(err).Msg("telegram: undecodable update")
		return
	}
	if u.Message == nil || u.Message.Text == "" {
		return
	}

	h.dispatch(r, u.Message.Chat.ID, strings.TrimSpace(u.Message.Text))
}

func (h *Handler) dispatch(r *http.Request, chatID int64, text string) {
	cmd := text
	if i := strings.IndexByte(text, ' '); i > 0 {
		cmd = text[:i]
	}

	switch {
	case strings.HasPrefix(text, "/save"):
		content := strings.TrimSpace(strings.TrimPrefix(text, "/save"))
		if content == "" {
			h.reply(chatID, "❌ Please provide the prompt content after /save")
			return
		}
		h.handled(cmd)
		h.handleSave(r, chatID, content)

	case strings.HasPrefix(text, "/search") || strings.HasPrefix(text, "/find"):
		query := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "/search"), "/find"))
		if query == "" {
			h.reply(chatID, "❌ Please provide a search query after the command")
			return
		}
		h.handled(cmd)
		h.handleSearch(chatID, query)

	case text == "/recent" || text == "/last":
		h.handled(cmd)
		h.handleRecent(chatID)

	case text == "/stats":
		h.handled(cmd)
		h.handleStats(chatID)

	case text == "/help" || text == "/start":
		h.handled(cmd)
		h.reply(chatID, helpText)

	case strings.HasPrefix(text, "/"):
		h.reply(chatID, "❓ Unknown command. Use /help to see available commands.")
	}
}

func (h *Handler) handled(cmd string) {
	if h.onCommand != nil {
		h.onCommand(cmd)
	}
}

// reply sends a message and logs delivery failures; there is nothing
// else to do with them inside a webhook.
func (h *Handler) reply(chatID int64, text string) {
	if err := h.bot.SendMessage(chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("telegram: send reply")
	}
}

func (h *Handler) account() (string, error) {
	acct, err := h.svc.Store().EnsureAccount(h.ownerEmail)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

func (h *Handler) handleSave(r *http.Request, chatID int64, content string) {
	accountID, err := h.account()
	if err != nil {
		log.Error().Err(err).Msg("telegram: resolve account")
		h.reply(chatID, "❌ Failed to save prompt. Please try again.")
		return
	}

	h.reply(chatID, "🤖 <i>Analyzing your prompt...</i>")

	// Analysis is best effort: the analyzer meters its own provider
	// calls, and quota denials and provider trouble both degrade to
	// the deterministic path, so the save itself never blocks.
	res := analyze.Fallback(content, "telegram")
	if h.analyzer != nil {
		if analyzed, err := h.analyzer.Analyze(r.Context(), accountID, content, "telegram"); err == nil {
			res = analyzed
		}
	}

	detail, err := h.svc.Create(prompts.CreateInput{
		AccountID:          accountID,
		Title:              res.Title,
		Content:            content,
		Source:             "other",
		CategoryID:         res.CategoryID,
		EffectivenessScore: res.EffectivenessScore,
		Tags:               res.Tags,
		Note:               "Saved via Telegram",
	})
	if err != nil {
		log.Error().Err(err).Msg("telegram: save prompt")
		h.reply(chatID, "❌ Failed to save prompt. Please try again.")
		return
	}

	var b strings.Builder
	b.WriteString("✅ <b>Prompt saved!")
	if res.AIPowered {
		b.WriteString(" 🤖")
	}
	b.WriteString("</b>\n\n📝 <b>Title:</b> ")
	b.WriteString(html.EscapeString(detail.Prompt.Title))
	if len(detail.Tags) > 0 {
		b.WriteString("\n🏷️ <b>Tags:</b>")
		for _, t := range detail.Tags {
			b.WriteString(" #" + html.EscapeString(t.Name))
		}
	}
	if res.EffectivenessScore > 0 {
		fmt.Fprintf(&b, "\n⭐ <b>Score:</b> %d/10", res.EffectivenessScore)
	}
	if res.EffectivenessReason != "" {
		fmt.Fprintf(&b, "\n💡 <i>%s</i>", html.EscapeString(res.EffectivenessReason))
	}
	h.reply(chatID, b.String())
}

func (h *Handler) handleSearch(chatID int64, query string) {
	accountID, err := h.account()
	if err != nil {
		h.reply(chatID, "❌ Search failed. Please try again.")
		return
	}

	results, err := h.svc.List(prompts.ListInput{
		AccountID: accountID,
		Query:     query,
		Limit:     searchLimit,
	})
	if err != nil {
		log.Error().Err(err).Msg("telegram: search")
		h.reply(chatID, "❌ Search failed. Please try again.")
		return
	}
	if len(results) == 0 {
		h.reply(chatID, fmt.Sprintf("🔍 No prompts found for %q", query))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 <b>Found %d prompt(s) for %q:</b>\n\n", len(results), query)
	for i, d := range results {
		fmt.Fprintf(&b, "%d. %s<b>%s</b>\n<code>%s</code>\n\n",
			i+1,
			scoreStars(int(d.Prompt.EffectivenessScore.Int64)),
			html.EscapeString(d.Prompt.Title),
			html.EscapeString(preview(d.Prompt.Content, searchPreview)),
		)
	}
	h.reply(chatID, b.String())
}

func (h *Handler) handleRecent(chatID int64) {
	accountID, err := h.account()
	if err != nil {
		h.reply(chatID, "❌ Failed to fetch recent prompts.")
		return
	}

	results, err := h.svc.List(prompts.ListInput{AccountID: accountID, Limit: searchLimit})
	if err != nil {
		log.Error().Err(err).Msg("telegram: recent")
		h.reply(chatID, "❌ Failed to fetch recent prompts.")
		return
	}
	if len(results) == 0 {
		h.reply(chatID, "📭 No prompts saved yet. Use /save to add your first prompt!")
		return
	}

	var b strings.Builder
	b.WriteString("📋 <b>Your recent prompts:</b>\n\n")
	for i, d := range results {
		fmt.Fprintf(&b, "%d. <b>%s</b>\n<code>%s</code>\n\n",
			i+1,
			html.EscapeString(d.Prompt.Title),
			html.EscapeString(preview(d.Prompt.Content, recentPreview)),
		)
	}
	h.reply(chatID, b.String())
}

func (h *Handler) handleStats(chatID int64) {
	accountID, err := h.account()
	if err != nil {
		h.reply(chatID, "❌ Failed to fetch stats.")
		return
	}

	stats, err := h.svc.Store().GetPromptStats(accountID)
	if err != nil {
		log.Error().Err(err).Msg("telegram: stats")
		h.reply(chatID, "❌ Failed to fetch stats.")
		return
	}

	h.reply(chatID, fmt.Sprintf(
		"📊 <b>Your PromptVault Stats</b>\n\n"+
			"📝 Total prompts: <b>%d</b>\n"+
			"⭐ Favorites: <b>%d</b>\n"+
			"📅 Added this week: <b>%d</b>",
		stats.Total, stats.Favorites, stats.AddedIn7d,
	))
}

// scoreStars renders a score out of 10 as one star per two points.
func scoreStars(score int) string {
	if score <= 0 {
		return ""
	}
	return strings.Repeat("⭐", (score+1)/2) + " "
}

func preview(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}

const helpText = "🗃️ <b>PromptVault Bot</b>\n\n" +
	"Save and search your AI prompts from anywhere!\n\n" +
	"<b>Commands:</b>\n\n" +
	"📥 <code>/save [prompt]</code>\nSave a new prompt\n\n" +
	"🔍 <code>/search [query]</code> or <code>/find [query]</code>\nSearch your prompts\n\n" +
	"📋 <code>/recent</code> or <code>/last</code>\nShow recent prompts\n\n" +
	"📊 <code>/stats</code>\nView your stats\n\n" +
	"❓ <code>/help</code>\nShow this help message\n\n" +
	"<i>💡 Tip: For full editing and version control, use the web dashboard!</i>"
