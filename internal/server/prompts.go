package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/promptvaultdev/promptvault/internal/prompts"
	"github.com/promptvaultdev/promptvault/internal/store"
)

type tagJSON struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Color           string `json:"color,omitempty"`
	IsAutoGenerated bool   `json:"is_auto_generated"`
}

type categoryJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
}

type versionJSON struct {
	ID                 string `json:"id"`
	VersionNumber      int64  `json:"version_number"`
	Content            string `json:"content"`
	ChangeNotes        string `json:"change_notes,omitempty"`
	EffectivenessScore *int64 `json:"effectiveness_score,omitempty"`
	CreatedAt          string `json:"created_at"`
}

type promptJSON struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Content            string        `json:"content"`
	Source             string        `json:"source"`
	CategoryID         string        `json:"category_id,omitempty"`
	CollectionID       string        `json:"collection_id,omitempty"`
	EffectivenessScore *int64        `json:"effectiveness_score,omitempty"`
	UseCount           int64         `json:"use_count"`
	IsFavorite         bool          `json:"is_favorite"`
	CurrentVersion     int64         `json:"current_version"`
	CreatedAt          string        `json:"created_at"`
	UpdatedAt          string        `json:"updated_at"`
	Tags               []tagJSON     `json:"tags"`
	Category           *categoryJSON `json:"category,omitempty"`
	Versions           []versionJSON `json:"versions,omitempty"`
}

func renderTag(t *store.Tag) tagJSON {
	return tagJSON{ID: t.ID, Name: t.Name, Color: t.Color, IsAutoGenerated: t.IsAutoGenerated}
}

func renderCategory(c *store.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, Description: c.Description, Icon: c.Icon, Color: c.Color}
}

func renderPrompt(d *prompts.Detail, categories map[string]*store.Category) promptJSON {
	p := d.Prompt
	out := promptJSON{
		ID:             p.ID,
		Title:          p.Title,
		Content:        p.Content,
		Source:         p.Source,
		CategoryID:     p.CategoryID.String,
		CollectionID:   p.CollectionID.String,
		UseCount:       p.UseCount,
		IsFavorite:     p.IsFavorite,
		CurrentVersion: p.CurrentVersion,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		Tags:           make([]tagJSON, 0, len(d.Tags)),
	}
	if p.EffectivenessScore.Valid {
		score := p.EffectivenessScore.Int64
		out.EffectivenessScore = &score
	}
	for _, t := range d.Tags {
		out.Tags = append(out.Tags, renderTag(t))
	}
	if p.CategoryID.Valid {
		if c, ok := categories[p.CategoryID.String]; ok {
			cj := renderCategory(c)
			out.Category = &cj
		}
	}
	for _, v := range d.Versions {
		vj := versionJSON{
			ID:            v.ID,
			VersionNumber: v.VersionNumber,
			Content:       v.Content,
			ChangeNotes:   v.ChangeNotes.String,
			CreatedAt:     v.CreatedAt,
		}
		if v.EffectivenessScore.Valid {
			score := v.EffectivenessScore.Int64
			vj.EffectivenessScore = &score
		}
		out.Versions = append(out.Versions, vj)
	}
	return out
}

// categoryMap loads all categories keyed by id for response joins.
func (s *Server) categoryMap() map[string]*store.Category {
	m := make(map[string]*store.Category)
	cats, err := s.store.ListCategories()
	if err != nil {
		return m
	}
	for _, c := range cats {
		m[c.ID] = c
	}
	return m
}

type promptBody struct {
	Title              *string   `json:"title"`
	Content            *string   `json:"content"`
	Source             *string   `json:"source"`
	CategoryID         *string   `json:"category_id"`
	CollectionID       *string   `json:"collection_id"`
	EffectivenessScore *int      `json:"effectiveness_score"`
	IsFavorite         *bool     `json:"is_favorite"`
	Tags               *[]string `json:"tags"`
	ChangeNotes        string    `json:"change_notes"`
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var body promptBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := prompts.CreateInput{
		AccountID: accountFrom(r).ID,
		Note:      body.ChangeNotes,
	}
	if body.Title != nil {
		in.Title = *body.Title
	}
	if body.Content != nil {
		in.Content = *body.Content
	}
	if body.Source != nil {
		in.Source = *body.Source
	}
	if body.CategoryID != nil {
		in.CategoryID = *body.CategoryID
	}
	if body.CollectionID != nil {
		in.CollectionID = *body.CollectionID
	}
	if body.EffectivenessScore != nil {
		in.EffectivenessScore = *body.EffectivenessScore
	}
	if body.IsFavorite != nil {
		in.IsFavorite = *body.IsFavorite
	}
	if body.Tags != nil {
		in.Tags = *body.Tags
	}

	d, err := s.svc.Create(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if s.collector != nil {
		s.collector.PromptCreated()
		s.collector.VersionCreated()
	}
	writeJSON(w, http.StatusCreated, renderPrompt(d, s.categoryMap()))
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := prompts.ListInput{
		AccountID:    accountFrom(r).ID,
		Query:        q.Get("query"),
		Source:       q.Get("source"),
		CategoryID:   q.Get("category_id"),
		CollectionID: q.Get("collection_id"),
		Limit:        queryInt(r, "limit", 0),
		Offset:       queryInt(r, "offset", 0),
	}
	if fav := q.Get("is_favorite"); fav != "" {
		b := fav == "true" || fav == "1"
		in.Favorite = &b
	}
	if tags, ok := q["tags"]; ok {
		in.Tags = tags
	}

	results, err := s.svc.List(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	categories := s.categoryMap()
	out := make([]promptJSON, 0, len(results))
	for _, d := range results {
		out = append(out, renderPrompt(d, categories))
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": out, "count": len(out)})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderPrompt(d, s.categoryMap()))
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var body promptBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	before, err := s.svc.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	d, err := s.svc.Update(id, prompts.UpdateInput{
		Title:              body.Title,
		Content:            body.Content,
		Source:             body.Source,
		CategoryID:         body.CategoryID,
		CollectionID:       body.CollectionID,
		EffectivenessScore: body.EffectivenessScore,
		IsFavorite:         body.IsFavorite,
		Tags:               body.Tags,
		ChangeNotes:        body.ChangeNotes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if s.collector != nil && d.Prompt.CurrentVersion > before.Prompt.CurrentVersion {
		s.collector.VersionCreated()
	}
	writeJSON(w, http.StatusOK, renderPrompt(d, s.categoryMap()))
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleUsePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RecordUse(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

// queryInt reads an integer query parameter with a default fallback.
func queryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
