package storage

import (
	"testing"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/logger"
)

func TestCatalogReplaceAndLookup(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	store := NewCatalogStore(log)

	if _, ok := store.First(); ok {
		t.Fatal("expected empty catalog")
	}

	voices := []domain.VoiceCatalogEntry{
		{ID: "fr-FR-A", LocaleID: "fr-FR"},
		{ID: "fr-FR-B", LocaleID: "fr-FR"},
	}
	store.Replace(voices)

	// Mutating the caller's slice must not leak in.
	voices[0].ID = "mutated"

	if store.Len() != 2 {
		t.Fatalf("expected 2 voices, got %d", store.Len())
	}
	first, ok := store.First()
	if !ok || first.ID != "fr-FR-A" {
		t.Fatalf("expected fr-FR-A first, got %+v", first)
	}
	if !store.Contains("fr-FR-B") || store.Contains("mutated") {
		t.Fatal("unexpected membership")
	}
	if _, err := store.Get("nope"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Replace is wholesale.
	store.Replace([]domain.VoiceCatalogEntry{{ID: "fr-FR-C", LocaleID: "fr-FR"}})
	if store.Contains("fr-FR-A") {
		t.Fatal("old entries survived a replace")
	}
	list := store.List()
	list[0].ID = "changed"
	if got, _ := store.Get("fr-FR-C"); got.ID != "fr-FR-C" {
		t.Fatal("List must return a copy")
	}
}
