package prompts

import (
	"errors"
	"testing"
)

func TestCollection_CRUD(t *testing.T) {
	svc, acct := newTestService(t)

	c, err := svc.CreateCollection(CollectionInput{
		AccountID:   acct.ID,
		Name:        "Launch emails",
		Description: "Everything for launch week",
	})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if c.Icon == "" || c.Color == "" {
		t.Errorf("defaults not applied: icon=%q color=%q", c.Icon, c.Color)
	}

	c, err = svc.UpdateCollection(c.ID, CollectionInput{Name: "Launch", Color: "#ff0000"})
	if err != nil {
		t.Fatalf("UpdateCollection: %v", err)
	}
	if c.Name != "Launch" || c.Color != "#ff0000" {
		t.Errorf("update not applied: %+v", c)
	}

	if err := svc.DeleteCollection(c.ID); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if _, err := svc.GetCollection(c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestCreateCollection_EmptyName(t *testing.T) {
	svc, acct := newTestService(t)
	_, err := svc.CreateCollection(CollectionInput{AccountID: acct.ID, Name: "  "})
	if !IsValidation(err) {
		t.Errorf("got %v, want ValidationError", err)
	}
}

func TestEnableSharing_TokenStableUntilDisabled(t *testing.T) {
	svc, acct := newTestService(t)
	c, err := svc.CreateCollection(CollectionInput{AccountID: acct.ID, Name: "Shared"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	first, err := svc.EnableSharing(c.ID)
	if err != nil {
		t.Fatalf("EnableSharing: %v", err)
	}
	if !first.IsPublic || !first.ShareToken.Valid {
		t.Fatalf("not shared: %+v", first)
	}
	if len(first.ShareToken.String) != 32 {
		t.Errorf("token length: got %d, want 32", len(first.ShareToken.String))
	}

	// Enabling again keeps the existing token.
	again, err := svc.EnableSharing(c.ID)
	if err != nil {
		t.Fatalf("EnableSharing: %v", err)
	}
	if again.ShareToken.String != first.ShareToken.String {
		t.Errorf("token changed while enabled: %q vs %q", again.ShareToken.String, first.ShareToken.String)
	}

	if err := svc.DisableSharing(c.ID); err != nil {
		t.Fatalf("DisableSharing: %v", err)
	}
	if _, err := svc.GetShared(first.ShareToken.String); !errors.Is(err, ErrNotFound) {
		t.Errorf("old token still resolves: %v", err)
	}

	// A fresh enable mints a new token.
	fresh, err := svc.EnableSharing(c.ID)
	if err != nil {
		t.Fatalf("EnableSharing: %v", err)
	}
	if fresh.ShareToken.String == first.ShareToken.String {
		t.Error("token reused after disable")
	}
}

func TestGetShared_MasksOwnerAndListsPrompts(t *testing.T) {
	svc, acct := newTestService(t)
	c, err := svc.CreateCollection(CollectionInput{AccountID: acct.ID, Name: "Public"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, err := svc.Create(CreateInput{
		AccountID:    acct.ID,
		Title:        "Inside",
		Content:      "c",
		Source:       "other",
		CollectionID: c.ID,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(CreateInput{
		AccountID: acct.ID, Title: "Outside", Content: "c", Source: "other",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	shared, err := svc.EnableSharing(c.ID)
	if err != nil {
		t.Fatalf("EnableSharing: %v", err)
	}
	view, err := svc.GetShared(shared.ShareToken.String)
	if err != nil {
		t.Fatalf("GetShared: %v", err)
	}
	if view.Owner != "te***@promptvault.local" {
		t.Errorf("owner: got %q", view.Owner)
	}
	if len(view.Prompts) != 1 || view.Prompts[0].Prompt.Title != "Inside" {
		t.Fatalf("prompts: got %d, want only the collection member", len(view.Prompts))
	}
}

func TestGetShared_UnknownToken(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GetShared("deadbeefdeadbeefdeadbeefdeadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMaskEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"alice@example.com", "al***@example.com"},
		{"ab@example.com", "a***@example.com"},
		{"not-an-email", "***"},
	}
	for _, tc := range cases {
		if got := maskEmail(tc.in); got != tc.want {
			t.Errorf("maskEmail(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
