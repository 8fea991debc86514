package prompts

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/promptvaultdev/promptvault/internal/store"
)

// CollectionInput carries the fields for creating or updating a
// collection. Empty Icon and Color fall back to the store defaults.
type CollectionInput struct {
	AccountID   string
	Name        string
	Description string
	Icon        string
	Color       string
}

// SharedCollection is the public view of a shared collection. The owner
// email is masked so share links never leak the full address.
type SharedCollection struct {
	Collection *store.Collection
	Owner      string
	Prompts    []*Detail
}

// CreateCollection validates and inserts a new collection.
func (s *Service) CreateCollection(in CollectionInput) (*store.Collection, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "must not be empty")
	}
	c := &store.Collection{
		AccountID:   in.AccountID,
		Name:        in.Name,
		Description: in.Description,
		Icon:        in.Icon,
		Color:       in.Color,
	}
	if err := s.store.CreateCollection(c); err != nil {
		return nil, mapStoreErr(err)
	}
	return c, nil
}

// GetCollection returns a single collection by id.
func (s *Service) GetCollection(id string) (*store.Collection, error) {
	c, err := s.store.GetCollection(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return c, nil
}

// ListCollections returns the account's collections with prompt counts.
func (s *Service) ListCollections(accountID string) ([]*store.Collection, error) {
	return s.store.ListCollections(accountID)
}

// UpdateCollection applies name, description, icon, and color changes.
func (s *Service) UpdateCollection(id string, in CollectionInput) (*store.Collection, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "must not be empty")
	}
	c, err := s.store.GetCollection(id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	c.Name = in.Name
	c.Description = in.Description
	if in.Icon != "" {
		c.Icon = in.Icon
	}
	if in.Color != "" {
		c.Color = in.Color
	}
	if err := s.store.UpdateCollection(c); err != nil {
		return nil, mapStoreErr(err)
	}
	return c, nil
}

// DeleteCollection removes a collection. Prompts inside it are kept and
// unfiled by the schema's ON DELETE SET NULL.
func (s *Service) DeleteCollection(id string) error {
	return mapStoreErr(s.store.DeleteCollection(id))
}

// EnableSharing marks a collection public and returns it with a share
// token. A collection that already had a token keeps it, so existing
// share links survive toggling.
func (s *Service) EnableSharing(id string) (*store.Collection, error) {
	token, err := newShareToken()
	if err != nil {
		return nil, err
	}
	c, err := s.store.EnableSharing(id, token)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return c, nil
}

// DisableSharing makes a collection private and invalidates its share
// link. Re-enabling later issues a fresh token.
func (s *Service) DisableSharing(id string) error {
	return mapStoreErr(s.store.DisableSharing(id))
}

// GetShared resolves a share token to a public collection view. Tokens
// for private collections do not resolve.
func (s *Service) GetShared(token string) (*SharedCollection, error) {
	c, err := s.store.GetCollectionByToken(token)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	owner := ""
	if a, err := s.store.GetAccount(c.AccountID); err == nil {
		owner = maskEmail(a.Email)
	}
	prompts, err := s.List(ListInput{AccountID: c.AccountID, CollectionID: c.ID})
	if err != nil {
		return nil, err
	}
	return &SharedCollection{Collection: c, Owner: owner, Prompts: prompts}, nil
}

// newShareToken returns 16 random bytes as lowercase hex.
func newShareToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// maskEmail hides most of the local part of an address: "alice@x.dev"
// becomes "al***@x.dev".
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	if len(local) <= 2 {
		return local[:1] + "***" + email[at:]
	}
	return local[:2] + "***" + email[at:]
}
