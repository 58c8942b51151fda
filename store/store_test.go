package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "session.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSaveAndLoad(t *testing.T) {
	st := testStore(t)

	rec := Record{
		Filename:          "/music/solo.mp3",
		StartTime:         10.0,
		EndTime:           13.0,
		Speed:             0.75,
		Pitch:             -2,
		IsLooping:         true,
		PauseBetweenLoops: 2.0,
		CountIn:           4,
	}
	if err := st.Save(rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := st.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if *got != rec {
		t.Errorf("Load() = %+v, want %+v", *got, rec)
	}
}

func TestLoadWithoutSession(t *testing.T) {
	st := testStore(t)
	if _, err := st.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load() error = %v, want ErrNoSession", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	st := testStore(t)

	if err := st.Save(Record{Filename: "a.wav", EndTime: 5}); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(Record{Filename: "b.wav", EndTime: 9}); err != nil {
		t.Fatal(err)
	}

	got, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "b.wav" || got.EndTime != 9 {
		t.Errorf("Load() = %+v, want the second record", *got)
	}
}

func TestClear(t *testing.T) {
	st := testStore(t)

	if err := st.Save(Record{Filename: "a.wav"}); err != nil {
		t.Fatal(err)
	}
	if err := st.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := st.Load(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load() after Clear error = %v, want ErrNoSession", err)
	}

	// Clearing twice is safe.
	if err := st.Clear(); err != nil {
		t.Fatalf("second Clear() error: %v", err)
	}
}
