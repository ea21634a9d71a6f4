package agent

import (
	"errors"
	"testing"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

func TestRegistryAssignsDenseIDs(t *testing.T) {
	r := NewCitationRegistry()
	if id := r.Register("resA"); id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
	if id := r.Register("resB"); id != 2 {
		t.Errorf("second id = %d, want 2", id)
	}
	if id := r.Register("resA"); id != 1 {
		t.Errorf("re-register = %d, want the original 1", id)
	}
	if r.Len() != 2 {
		t.Errorf("len = %d", r.Len())
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewCitationRegistry()
	if _, err := r.Resolve(7); !errors.Is(err, ErrUnknownCiteID) {
		t.Fatalf("err = %v, want ErrUnknownCiteID", err)
	}
}

func TestRegisterWithIDAdvancesCounter(t *testing.T) {
	r := NewCitationRegistry()
	r.RegisterWithID("resA", 7)

	if id := r.Register("resB"); id != 8 {
		t.Errorf("next id = %d, want 8", id)
	}
	if id := r.Register("resA"); id != 7 {
		t.Errorf("rehydrated id = %d, want 7", id)
	}
	got, err := r.Resolve(7)
	if err != nil || got != "resA" {
		t.Errorf("resolve(7) = %q, %v", got, err)
	}
}

func TestRehydrateWalksAllMessages(t *testing.T) {
	transcript := []models.Message{
		{Role: models.RoleSystem},
		{Role: models.RoleTool, Attrs: &models.MessageAttrs{
			Citations: []models.Citation{{ID: 1, Link: "resA"}, {ID: 2, Link: "https://example.com"}},
		}},
		{Role: models.RoleAssistant, Attrs: &models.MessageAttrs{
			Citations: []models.Citation{{ID: 3, Link: "resB"}},
		}},
		// Broken records are skipped, not fatal.
		{Role: models.RoleTool, Attrs: &models.MessageAttrs{
			Citations: []models.Citation{{ID: 0, Link: "resC"}, {ID: 4, Link: ""}},
		}},
	}

	r := NewCitationRegistry()
	r.Rehydrate(transcript)

	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	if id := r.Register("resNew"); id != 4 {
		t.Errorf("next id after rehydrate = %d, want 4", id)
	}
	if id, ok := r.Get("https://example.com"); !ok || id != 2 {
		t.Errorf("web citation id = %d, %v", id, ok)
	}
}
