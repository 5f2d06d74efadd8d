package selection

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestToggle(t *testing.T) {
	s := New()

	if !s.Toggle("a.png") {
		t.Error("first Toggle() = false, want true")
	}
	if !s.Contains("a.png") {
		t.Error("Contains() = false after select")
	}
	if s.Toggle("a.png") {
		t.Error("second Toggle() = true, want false")
	}
	if s.Contains("a.png") || s.Len() != 0 {
		t.Errorf("set not empty after double toggle: %v", s.Filenames())
	}
}

func TestToggleParity(t *testing.T) {
	names := []string{"a.png", "b.png", "c.png", "d.png"}
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		s := New()
		counts := make(map[string]int)
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			name := names[rng.Intn(len(names))]
			s.Toggle(name)
			counts[name]++
		}
		for _, name := range names {
			want := counts[name]%2 == 1
			if got := s.Contains(name); got != want {
				t.Fatalf("round %d: Contains(%q) = %v after %d toggles", round, name, got, counts[name])
			}
		}
	}
}

func TestFilenamesKeepsToggleOrder(t *testing.T) {
	s := New()
	s.Toggle("c.png")
	s.Toggle("a.png")
	s.Toggle("b.png")
	s.Toggle("a.png")
	s.Toggle("a.png")

	want := []string{"c.png", "b.png", "a.png"}
	if got := s.Filenames(); !reflect.DeepEqual(got, want) {
		t.Errorf("Filenames() = %v, want %v", got, want)
	}

	got := s.Filenames()
	got[0] = "mutated"
	if s.Filenames()[0] != "c.png" {
		t.Error("Filenames() exposes internal slice")
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := New()
	for _, f := range []string{"a.png", "b.png", "c.png"} {
		s.Toggle(f)
	}

	s.Remove("a.png", "missing.png", "c.png")
	if got := s.Filenames(); !reflect.DeepEqual(got, []string{"b.png"}) {
		t.Errorf("after Remove, Filenames() = %v", got)
	}

	s.Clear()
	if s.Len() != 0 || s.Contains("b.png") {
		t.Errorf("after Clear, Filenames() = %v", s.Filenames())
	}
	s.Toggle("b.png")
	if !s.Contains("b.png") {
		t.Error("set unusable after Clear")
	}
}
