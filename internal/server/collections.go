package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/promptvaultdev/promptvault/internal/prompts"
	"github.com/promptvaultdev/promptvault/internal/store"
)

type collectionJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
	IsPublic    bool   `json:"is_public"`
	ShareToken  string `json:"share_token,omitempty"`
	PromptCount int64  `json:"prompt_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func renderCollection(c *store.Collection) collectionJSON {
	return collectionJSON{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Color:       c.Color,
		IsPublic:    c.IsPublic,
		ShareToken:  c.ShareToken.String,
		PromptCount: c.PromptCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// --- tags ---

func (s *Server) handleListTags(w http.ResponseWriter, _ *http.Request) {
	tags, err := s.store.ListTags()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]tagJSON, 0, len(tags))
	for _, t := range tags {
		out = append(out, renderTag(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": out})
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "tag name is required")
		return
	}

	t := &store.Tag{Name: body.Name, Color: body.Color}
	if err := s.store.CreateTag(t); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderTag(t))
}

// --- categories ---

func (s *Server) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	cats, err := s.store.ListCategories()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, renderCategory(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
		Color       string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "category name is required")
		return
	}

	c := &store.Category{
		Name:        body.Name,
		Description: body.Description,
		Icon:        body.Icon,
		Color:       body.Color,
	}
	if err := s.store.CreateCategory(c); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderCategory(c))
}

// --- collections ---

type collectionBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.svc.ListCollections(accountFrom(r).ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]collectionJSON, 0, len(cols))
	for _, c := range cols {
		out = append(out, renderCollection(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": out})
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var body collectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.svc.CreateCollection(prompts.CollectionInput{
		AccountID:   accountFrom(r).ID,
		Name:        body.Name,
		Description: body.Description,
		Icon:        body.Icon,
		Color:       body.Color,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderCollection(c))
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetCollection(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderCollection(c))
}

func (s *Server) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	var body collectionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.svc.UpdateCollection(chi.URLParam(r, "id"), prompts.CollectionInput{
		Name:        body.Name,
		Description: body.Description,
		Icon:        body.Icon,
		Color:       body.Color,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderCollection(c))
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCollection(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// --- sharing ---

func (s *Server) handleEnableSharing(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.EnableSharing(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection":  renderCollection(c),
		"share_token": c.ShareToken.String,
		"share_url":   s.cfg.Server.PublicURL() + "/share/" + c.ShareToken.String,
	})
}

func (s *Server) handleDisableSharing(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DisableSharing(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"disabled": true})
}

func (s *Server) handleSharedJSON(w http.ResponseWriter, r *http.Request) {
	shared, err := s.svc.GetShared(chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if s.collector != nil {
		s.collector.SharedFetch()
	}

	categories := s.categoryMap()
	promptsOut := make([]promptJSON, 0, len(shared.Prompts))
	for _, d := range shared.Prompts {
		promptsOut = append(promptsOut, renderPrompt(d, categories))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": renderCollection(shared.Collection),
		"owner":      shared.Owner,
		"prompts":    promptsOut,
	})
}
