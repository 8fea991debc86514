package prompts

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/store"
)

// ValidSources lists where a prompt can originate.
var ValidSources = []string{"chatgpt", "gemini", "claude", "nano_banana", "cursor", "other"}

// Service implements the prompt library operations on top of the store.
type Service struct {
	store *store.Store
}

// NewService creates a prompt service.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Store exposes the underlying store for transports that need direct
// read access (stats, subscription views).
func (s *Service) Store() *store.Store {
	return s.store
}

// Detail bundles a prompt with its linked tags and, optionally, its
// version history.
type Detail struct {
	Prompt   *store.Prompt
	Tags     []*store.Tag
	Versions []*store.PromptVersion
}

// CreateInput carries the fields for a new prompt. Zero values mean
// "not provided".
type CreateInput struct {
	AccountID          string
	Title              string
	Content            string
	Source             string
	CategoryID         string
	CollectionID       string
	EffectivenessScore int
	IsFavorite         bool
	Tags               []string
	Note               string
}

// UpdateInput carries a partial prompt update. Nil pointers leave the
// field untouched; empty strings clear nullable references.
type UpdateInput struct {
	Title              *string
	Content            *string
	Source             *string
	CategoryID         *string
	CollectionID       *string
	EffectivenessScore *int
	IsFavorite         *bool
	Tags               *[]string
	ChangeNotes        string
}

// ListInput filters List results.
type ListInput struct {
	AccountID    string
	Query        string
	Source       string
	CategoryID   string
	CollectionID string
	Favorite     *bool
	Tags         []string
	Limit        int
	Offset       int
}

func validSource(source string) bool {
	for _, s := range ValidSources {
		if s == source {
			return true
		}
	}
	return false
}

func validScore(score int) bool {
	return score >= 1 && score <= 10
}

func nullStr(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullScore(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

// Create validates the input, inserts the prompt with its version-1
// snapshot, and reconciles any tag names.
func (s *Service) Create(in CreateInput) (*Detail, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", "must not be empty")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, invalid("content", "must not be empty")
	}
	if !validSource(in.Source) {
		return nil, invalid("source", fmt.Sprintf("must be one of %v", ValidSources))
	}
	if in.EffectivenessScore != 0 && !validScore(in.EffectivenessScore) {
		return nil, invalid("effectiveness_score", "must be between 1 and 10")
	}

	note := in.Note
	if note == "" {
		note = "Initial version"
	}

	p := &store.Prompt{
		AccountID:          in.AccountID,
		Title:              in.Title,
		Content:            in.Content,
		Source:             in.Source,
		CategoryID:         nullStr(in.CategoryID),
		CollectionID:       nullStr(in.CollectionID),
		EffectivenessScore: nullScore(in.EffectivenessScore),
		IsFavorite:         in.IsFavorite,
	}
	if err := s.store.CreatePrompt(p, note); err != nil {
		return nil, mapStoreErr(err)
	}

	tags, err := s.attachTags(p.ID, in.Tags, false)
	if err != nil {
		// The prompt itself is saved; tag reconciliation failures are
		// logged rather than surfaced as a create failure.
		log.Warn().Err(err).Str("prompt_id", p.ID).Msg("tag reconciliation failed")
	}

	log.Debug().Str("prompt_id", p.ID).Str("source", in.Source).Msg("prompt created")
	return &Detail{Prompt: p, Tags: tags}, nil
}

// Update applies a partial update. A changed, non-empty content value
// bumps the version and appends exactly one snapshot; anything else is
// a metadata-only write. Version conflicts with concurrent writers are
// retried with a fresh read.
func (s *Service) Update(id string, in UpdateInput) (*Detail, error) {
	if in.Source != nil && !validSource(*in.Source) {
		return nil, invalid("source", fmt.Sprintf("must be one of %v", ValidSources))
	}
	if in.EffectivenessScore != nil && *in.EffectivenessScore != 0 && !validScore(*in.EffectivenessScore) {
		return nil, invalid("effectiveness_score", "must be between 1 and 10")
	}

	cfg := config.Get()
	var updated *store.Prompt

	err := retry.Do(
		func() error {
			p, err := s.store.GetPrompt(id)
			if err != nil {
				return retry.Unrecoverable(mapStoreErr(err))
			}

			contentChanged := in.Content != nil && *in.Content != "" && *in.Content != p.Content

			if in.Title != nil {
				p.Title = *in.Title
			}
			if in.Source != nil {
				p.Source = *in.Source
			}
			if in.CategoryID != nil {
				p.CategoryID = nullStr(*in.CategoryID)
			}
			if in.CollectionID != nil {
				p.CollectionID = nullStr(*in.CollectionID)
			}
			if in.EffectivenessScore != nil {
				p.EffectivenessScore = nullScore(*in.EffectivenessScore)
			}
			if in.IsFavorite != nil {
				p.IsFavorite = *in.IsFavorite
			}

			if contentChanged {
				prev := p.CurrentVersion
				p.Content = *in.Content
				note := in.ChangeNotes
				if note == "" {
					note = fmt.Sprintf("Version %d", prev+1)
				}
				if err := s.store.UpdatePromptWithVersion(p, prev, nullStr(note)); err != nil {
					return err
				}
			} else {
				if err := s.store.UpdatePromptFields(p); err != nil {
					return retry.Unrecoverable(mapStoreErr(err))
				}
			}

			updated = p
			return nil
		},
		retry.Attempts(uint(cfg.Resilience.WriteRetryAttempts)),
		retry.Delay(time.Duration(cfg.Resilience.WriteRetryDelayMs)*time.Millisecond),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, store.ErrVersionConflict)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, mapStoreErr(err)
	}

	var tags []*store.Tag
	if in.Tags != nil {
		if err := s.store.UnlinkTags(id); err != nil {
			return nil, err
		}
		tags, err = s.attachTags(id, *in.Tags, false)
		if err != nil {
			return nil, err
		}
	} else {
		tags, err = s.store.TagsForPrompt(id)
		if err != nil {
			return nil, err
		}
	}

	return &Detail{Prompt: updated, Tags: tags}, nil
}

// Get returns a prompt with its tags and full version history.
func (s *Service) Get(id string) (*Detail, error) {
	p, err := s.store.GetPrompt(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	tags, err := s.store.TagsForPrompt(id)
	if err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(id)
	if err != nil {
		return nil, err
	}
	return &Detail{Prompt: p, Tags: tags, Versions: versions}, nil
}

// List returns prompts matching the filter, each with its tags. Tag
// filtering happens after the SQL query: a prompt matches when it
// carries at least one of the requested tag names.
func (s *Service) List(in ListInput) ([]*Detail, error) {
	rows, err := s.store.ListPrompts(store.PromptFilter{
		AccountID:    in.AccountID,
		Query:        in.Query,
		Source:       in.Source,
		CategoryID:   in.CategoryID,
		CollectionID: in.CollectionID,
		Favorite:     in.Favorite,
		Limit:        in.Limit,
		Offset:       in.Offset,
	})
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(in.Tags))
	for _, name := range in.Tags {
		if n := normalizeTag(name); n != "" {
			wanted[n] = true
		}
	}

	results := make([]*Detail, 0, len(rows))
	for _, p := range rows {
		tags, err := s.store.TagsForPrompt(p.ID)
		if err != nil {
			return nil, err
		}
		if len(wanted) > 0 {
			match := false
			for _, t := range tags {
				if wanted[t.Name] {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		results = append(results, &Detail{Prompt: p, Tags: tags})
	}
	return results, nil
}

// Delete removes a prompt and everything hanging off it.
func (s *Service) Delete(id string) error {
	return mapStoreErr(s.store.DeletePrompt(id))
}

// RecordUse bumps the use counter for a prompt.
func (s *Service) RecordUse(id string) error {
	return mapStoreErr(s.store.IncrementUseCount(id))
}

// Stats returns library totals for an account.
func (s *Service) Stats(accountID string) (*store.PromptStats, error) {
	return s.store.GetPromptStats(accountID)
}

// normalizeTag produces the canonical stored form of a tag name.
func normalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ResolveTags normalises the given names and returns one tag per
// distinct name, creating missing tags as it goes.
func (s *Service) ResolveTags(names []string, autoGenerated bool) ([]*store.Tag, error) {
	seen := make(map[string]bool, len(names))
	var tags []*store.Tag
	for _, raw := range names {
		name := normalizeTag(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		t, err := s.store.EnsureTag(name, "", autoGenerated)
		if err != nil {
			return tags, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// attachTags resolves names and links each resulting tag to the prompt.
func (s *Service) attachTags(promptID string, names []string, autoGenerated bool) ([]*store.Tag, error) {
	tags, err := s.ResolveTags(names, autoGenerated)
	if err != nil {
		return tags, err
	}
	for _, t := range tags {
		if err := s.store.LinkTag(promptID, t.ID); err != nil {
			return tags, err
		}
	}
	return tags, nil
}

// AttachTags links the given tag names to a prompt, creating tags as
// needed. Used by the analysis flow to attach auto-generated tags.
func (s *Service) AttachTags(promptID string, names []string, autoGenerated bool) ([]*store.Tag, error) {
	return s.attachTags(promptID, names, autoGenerated)
}
