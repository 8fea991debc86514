package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/promptvaultdev/promptvault/web"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var shareTemplate = template.Must(
	template.ParseFS(web.Assets, "templates/share.html"),
)

type sharePagePrompt struct {
	Title   string
	Source  string
	Tags    []string
	Score   int64
	Content template.HTML
}

type sharePageData struct {
	Name        string
	Description string
	Icon        string
	Owner       string
	Prompts     []sharePagePrompt
}

// handleSharedHTML renders the public share page. Prompt content is
// markdown-rendered; everything else goes through html/template
// escaping.
func (s *Server) handleSharedHTML(w http.ResponseWriter, r *http.Request) {
	shared, err := s.svc.GetShared(chi.URLParam(r, "token"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if s.collector != nil {
		s.collector.SharedFetch()
	}

	data := sharePageData{
		Name:        shared.Collection.Name,
		Description: shared.Collection.Description,
		Icon:        shared.Collection.Icon,
		Owner:       shared.Owner,
	}
	for _, d := range shared.Prompts {
		p := sharePagePrompt{
			Title:  d.Prompt.Title,
			Source: d.Prompt.Source,
			Score:  d.Prompt.EffectivenessScore.Int64,
		}
		for _, t := range d.Tags {
			p.Tags = append(p.Tags, t.Name)
		}

		var buf bytes.Buffer
		if err := markdown.Convert([]byte(d.Prompt.Content), &buf); err != nil {
			log.Warn().Err(err).Str("prompt_id", d.Prompt.ID).Msg("server: markdown render")
			buf.Reset()
			template.HTMLEscape(&buf, []byte(d.Prompt.Content))
		}
		p.Content = template.HTML(buf.String())
		data.Prompts = append(data.Prompts, p)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := shareTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("server: share page render")
	}
}
