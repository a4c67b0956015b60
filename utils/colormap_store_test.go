package utils

import (
	"errors"
	"os"
	"testing"
)

func TestStopFromChannels(t *testing.T) {
	s, err := stopFromChannels(0.25, [3]int{10, 20, 30})
	if err != nil || s.Key != 0.25 || s.Colour != (RGB{10, 20, 30}) {
		t.Errorf("got %v %v", s, err)
	}
	if _, err := stopFromChannels(0, [3]int{0, -1, 0}); !errors.Is(err, ErrInvalidColormap) {
		t.Errorf("expected ErrInvalidColormap, got %v", err)
	}
}

func TestColormapStore(t *testing.T) {
	dsn := os.Getenv("VOXRGB_TEST_DSN")
	if len(dsn) == 0 {
		t.Skip("VOXRGB_TEST_DSN is not set. Skipping tests that require a Postgres connection")
		return
	}

	store, err := OpenColormapStore(dsn)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	// temporary tables live on a single connection
	store.db.SetMaxOpenConns(1)

	if _, err := store.db.Exec(`create temporary table colormap_stops (name text, key double precision, red integer, green integer, blue integer)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := store.db.Exec(`insert into colormap_stops values ('fire', 1, 255, 0, 0), ('fire', 0, 0, 0, 0), ('flat', 0, 1, 1, 1)`); err != nil {
		t.Fatalf("failed to insert stops: %v", err)
	}

	cm, err := store.Colormap("fire")
	if err != nil {
		t.Fatalf("Colormap failed: %v", err)
	}
	if c := cm.Resolve(0.5); c != (RGB{128, 0, 0}) {
		t.Errorf("Resolve(0.5) = %v, expected {128 0 0}", c)
	}

	if _, err := store.Colormap("flat"); !errors.Is(err, ErrInvalidColormap) {
		t.Errorf("expected ErrInvalidColormap for a single stop, got %v", err)
	}
}
