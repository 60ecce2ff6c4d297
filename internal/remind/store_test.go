package remind

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "reminders.json"))
}

func TestAdd_GeneratesTimestampID(t *testing.T) {
	s := tempStore(t)
	now := time.Unix(1700000000, 0)
	r := s.Add("umo-1", "buy milk", "2024-06-01 09:00", now)
	if r.ID != "R1700000000" {
		t.Errorf("id = %q, want R1700000000", r.ID)
	}
}

func TestAdd_SameSecondCollisionGetsSuffix(t *testing.T) {
	s := tempStore(t)
	now := time.Unix(1700000000, 0)
	a := s.Add("umo-1", "one", "09:00|daily", now)
	b := s.Add("umo-1", "two", "10:00|daily", now)
	if a.ID == b.ID {
		t.Fatalf("colliding adds produced the same id %q", a.ID)
	}
	if len(b.ID) <= len(a.ID) {
		t.Errorf("second id %q should carry a suffix", b.ID)
	}
}

func TestListFor_SortedByCreation(t *testing.T) {
	s := tempStore(t)
	s.Add("umo-1", "second", "09:00|daily", time.Unix(200, 0))
	s.Add("umo-1", "first", "09:00|daily", time.Unix(100, 0))
	s.Add("umo-2", "other", "09:00|daily", time.Unix(150, 0))

	got := s.ListFor("umo-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(got))
	}
	if got[0].Content != "first" || got[1].Content != "second" {
		t.Errorf("wrong order: %v", got)
	}
}

func TestDelete_OwnershipChecked(t *testing.T) {
	s := tempStore(t)
	r := s.Add("umo-1", "x", "09:00|daily", time.Unix(100, 0))

	if s.Delete(r.ID, "umo-2") {
		t.Error("delete by a different owner should fail")
	}
	if !s.Delete(r.ID, "umo-1") {
		t.Error("delete by the owner should succeed")
	}
	if s.Delete(r.ID, "umo-1") {
		t.Error("deleting a missing id should fail")
	}
}

func TestDaily_Parsing(t *testing.T) {
	r := Reminder{At: "09:30|daily"}
	hhmm, ok := r.Daily()
	if !ok || hhmm != "09:30" {
		t.Errorf("got (%q, %v), want (09:30, true)", hhmm, ok)
	}
	oneShot := Reminder{At: "2024-06-01 09:30"}
	if _, ok := oneShot.Daily(); ok {
		t.Error("one-shot reminder should not report daily")
	}
}

func TestSaveAndReload_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	s := Open(path)
	s.Add("umo-1", "water plants", "2024-06-01 09:00", time.Unix(100, 0))
	s.Add("umo-1", "stand up", "10:00|daily", time.Unix(200, 0))
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := Open(path)
	got := reloaded.ListFor("umo-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 reminders after reload, got %d", len(got))
	}
	if got[0].Content != "water plants" || got[1].At != "10:00|daily" {
		t.Errorf("reminders did not round-trip: %v", got)
	}
}

func TestOpen_MalformedFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	if err := os.WriteFile(path, []byte("[{"), 0644); err != nil {
		t.Fatal(err)
	}
	s := Open(path)
	if len(s.All()) != 0 {
		t.Error("malformed file should yield empty store")
	}
}

func TestPurge_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	s := Open(path)
	s.Add("umo-1", "x", "09:00|daily", time.Unix(100, 0))
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	if err := s.Purge(); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("reminders file should be gone after purge")
	}
	if len(s.All()) != 0 {
		t.Error("in-memory reminders should be gone after purge")
	}
}
