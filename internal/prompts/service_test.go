package prompts

import (
	"errors"
	"testing"

	"github.com/promptvaultdev/promptvault/internal/store"
	"github.com/promptvaultdev/promptvault/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *store.Account) {
	t.Helper()
	st := testutil.NewTestStore(t)
	acct := testutil.NewTestAccount(t, st)
	return NewService(st), acct
}

func createTestPrompt(t *testing.T, svc *Service, acct *store.Account) *Detail {
	t.Helper()
	d, err := svc.Create(CreateInput{
		AccountID: acct.ID,
		Title:     "Marketing email",
		Content:   "Write a launch email for a developer tool.",
		Source:    "chatgpt",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return d
}

func strPtr(s string) *string { return &s }

func TestCreate_Validation(t *testing.T) {
	svc, acct := newTestService(t)

	cases := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"empty title", CreateInput{AccountID: acct.ID, Content: "x", Source: "other"}, "title"},
		{"blank title", CreateInput{AccountID: acct.ID, Title: "   ", Content: "x", Source: "other"}, "title"},
		{"empty content", CreateInput{AccountID: acct.ID, Title: "t", Source: "other"}, "content"},
		{"bad source", CreateInput{AccountID: acct.ID, Title: "t", Content: "x", Source: "midjourney"}, "source"},
		{"score too high", CreateInput{AccountID: acct.ID, Title: "t", Content: "x", Source: "other", EffectivenessScore: 11}, "effectiveness_score"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(tc.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field: got %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestCreate_InitialVersion(t *testing.T) {
	svc, acct := newTestService(t)
	d := createTestPrompt(t, svc, acct)

	if d.Prompt.CurrentVersion != 1 {
		t.Errorf("current_version: got %d, want 1", d.Prompt.CurrentVersion)
	}
	full, err := svc.Get(d.Prompt.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(full.Versions) != 1 {
		t.Fatalf("versions: got %d, want 1", len(full.Versions))
	}
	if got := full.Versions[0].ChangeNotes.String; got != "Initial version" {
		t.Errorf("change notes: got %q, want %q", got, "Initial version")
	}
}

func TestCreate_NormalizesTags(t *testing.T) {
	svc, acct := newTestService(t)

	d, err := svc.Create(CreateInput{
		AccountID: acct.ID,
		Title:     "Tagged",
		Content:   "content",
		Source:    "claude",
		Tags:      []string{"Hooks", " hooks ", "HOOKS", "Email"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(d.Tags) != 2 {
		t.Fatalf("tags: got %d, want 2", len(d.Tags))
	}
	if d.Tags[0].Name != "hooks" || d.Tags[1].Name != "email" {
		t.Errorf("tag names: got %q, %q", d.Tags[0].Name, d.Tags[1].Name)
	}
}

func TestResolveTags_SharesRowsAcrossPrompts(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.ResolveTags([]string{"Copywriting"}, false)
	if err != nil {
		t.Fatalf("ResolveTags: %v", err)
	}
	second, err := svc.ResolveTags([]string{"  copywriting  "}, true)
	if err != nil {
		t.Fatalf("ResolveTags: %v", err)
	}
	if first[0].ID != second[0].ID {
		t.Errorf("tag ids differ: %q vs %q", first[0].ID, second[0].ID)
	}
}

func TestUpdate_MetadataOnlyKeepsVersion(t *testing.T) {
	svc, acct := newTestService(t)
	d := createTestPrompt(t, svc, acct)

	fav := true
	out, err := svc.Update(d.Prompt.ID, UpdateInput{
		Title:      strPtr("Renamed"),
		IsFavorite: &fav,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Prompt.CurrentVersion != 1 {
		t.Errorf("current_version: got %d, want 1", out.Prompt.CurrentVersion)
	}
	if out.Prompt.Title != "Renamed" || !out.Prompt.IsFavorite {
		t.Errorf("metadata not applied: %+v", out.Prompt)
	}

	full, _ := svc.Get(d.Prompt.ID)
	if len(full.Versions) != 1 {
		t.Errorf("versions: got %d, want 1", len(full.Versions))
	}
}

func TestUpdate_SameContentNoBump(t *testing.T) {
	svc, acct := newTestService(t)
	d := createTestPrompt(t, svc, acct)

	out, err := svc.Update(d.Prompt.ID, UpdateInput{Content: strPtr(d.Prompt.Content)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Prompt.CurrentVersion != 1 {
		t.Errorf("current_version: got %d, want 1", out.Prompt.CurrentVersion)
	}
}

func TestUpdate_ContentBumpsOnce(t *testing.T) {
	svc, acct := newTestService(t)
	d := createTestPrompt(t, svc, acct)

	out, err := svc.Update(d.Prompt.ID, UpdateInput{Content: strPtr("Revised body.")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Prompt.CurrentVersion != 2 {
		t.Errorf("current_version: got %d, want 2", out.Prompt.CurrentVersion)
	}

	full, _ := svc.Get(d.Prompt.ID)
	if len(full.Versions) != 2 {
		t.Fatalf("versions: got %d, want 2", len(full.Versions))
	}
	// Newest first.
	if got := full.Versions[0].ChangeNotes.String; got != "Version 2" {
		t.Errorf("change notes: got %q, want %q", got, "Version 2")
	}
	if full.Versions[0].Content != "Revised body." {
		t.Errorf("snapshot content: got %q", full.Versions[0].Content)
	}
}

func TestUpdate_CustomChangeNotes(t *testing.T) {
	svc, acct := newTestService(t)
	d := createTestPrompt(t, svc, acct)

	_, err := svc.Update(d.Prompt.ID, UpdateInput{
		Content:     strPtr("Tightened the call to action."),
		ChangeNotes: "Shorter CTA",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	full, _ := svc.Get(d.Prompt.ID)
	if got := full.Versions[0].ChangeNotes.String; got != "Shorter CTA" {
		t.Errorf("change notes: got %q, want %q", got, "Shorter CTA")
	}
}

func TestUpdate_ReplacesTags(t *testing.T) {
	svc, acct := newTestService(t)

	d, err := svc.Create(CreateInput{
		AccountID: acct.ID,
		Title:     "t", Content: "c", Source: "other",
		Tags: []string{"old"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newTags := []string{"Fresh", "Second"}
	out, err := svc.Update(d.Prompt.ID, UpdateInput{Tags: &newTags})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(out.Tags) != 2 {
		t.Fatalf("tags: got %d, want 2", len(out.Tags))
	}
	for _, tag := range out.Tags {
		if tag.Name == "old" {
			t.Error("old tag still linked")
		}
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Update("nope", UpdateInput{Title: strPtr("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestList_TagFilter(t *testing.T) {
	svc, acct := newTestService(t)

	mk := func(title string, tags ...string) {
		t.Helper()
		_, err := svc.Create(CreateInput{
			AccountID: acct.ID, Title: title, Content: "c", Source: "other", Tags: tags,
		})
		if err != nil {
			t.Fatalf("Create %s: %v", title, err)
		}
	}
	mk("a", "email", "hooks")
	mk("b", "coding")
	mk("c")

	out, err := svc.List(ListInput{AccountID: acct.ID, Tags: []string{"HOOKS"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].Prompt.Title != "a" {
		t.Fatalf("got %d results, want prompt a only", len(out))
	}

	all, err := svc.List(ListInput{AccountID: acct.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered: got %d, want 3", len(all))
	}
}

func TestRecordUse(t *testing.T) {
	svc, acct := newTestService(t)
	d := createTestPrompt(t, svc, acct)

	if err := svc.RecordUse(d.Prompt.ID); err != nil {
		t.Fatalf("RecordUse: %v", err)
	}
	if err := svc.RecordUse(d.Prompt.ID); err != nil {
		t.Fatalf("RecordUse: %v", err)
	}
	full, _ := svc.Get(d.Prompt.ID)
	if full.Prompt.UseCount != 2 {
		t.Errorf("use_count: got %d, want 2", full.Prompt.UseCount)
	}
}

func TestDelete_ThenGetNotFound(t *testing.T) {
	svc, acct := newTestService(t)
	d := createTestPrompt(t, svc, acct)

	if err := svc.Delete(d.Prompt.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(d.Prompt.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
