package domain

import (
	"reflect"
	"testing"
)

func TestNewCatalogValidatesOptions(t *testing.T) {
	catalog := NewCatalog("default", []RawQuestion{
		{Title: "Q1", Options: []string{" a", "B", "b", "D", "c "}, Correct: "b"},
		{Title: "dropped", Options: []string{"A", "x"}, Correct: "A"},
		{Title: "no correct", Options: []string{"A", "B"}, Correct: "C"},
	})

	if len(catalog.Questions) != 2 {
		t.Fatalf("expected 2 questions to survive, got %d", len(catalog.Questions))
	}
	first := catalog.Questions[0]
	if !reflect.DeepEqual(first.Options, []string{"A", "B", "C"}) {
		t.Fatalf("expected canonical deduped options, got %v", first.Options)
	}
	if first.CorrectOption != "B" {
		t.Fatalf("expected correct option B, got %q", first.CorrectOption)
	}
	second := catalog.Questions[1]
	if second.Title != "no correct" || second.CorrectOption != "" {
		t.Fatalf("expected question without correct option, got %+v", second)
	}
	if second.IsCorrect("A") || second.IsCorrect("B") {
		t.Fatalf("question without correct option must score nobody")
	}
}

func TestNewCatalogFallsBackToDefault(t *testing.T) {
	for _, raw := range [][]RawQuestion{
		nil,
		{{Title: "bad", Options: []string{"X", "Y"}, Correct: "X"}},
	} {
		catalog := NewCatalog("default", raw)
		if len(catalog.Questions) != 1 {
			t.Fatalf("expected default question, got %d", len(catalog.Questions))
		}
		q := catalog.Questions[0]
		if !reflect.DeepEqual(q.Options, []string{"A", "B"}) || q.CorrectOption != "A" {
			t.Fatalf("unexpected default question %+v", q)
		}
	}
}

func TestQuestionOptionMatching(t *testing.T) {
	q := Question{Title: "Q1", Options: []string{"A", "B"}, CorrectOption: "A"}

	if got := q.CanonicalOption(" b "); got != "B" {
		t.Fatalf("expected canonical B, got %q", got)
	}
	if q.HasOption("C") {
		t.Fatalf("C is not an option")
	}
	if !q.IsCorrect("a") {
		t.Fatalf("expected case-insensitive correct match")
	}
	if q.IsCorrect("B") {
		t.Fatalf("B is not correct")
	}
}

func TestValidWeight(t *testing.T) {
	for _, w := range []int{1, 2, 4} {
		if !ValidWeight(w) {
			t.Fatalf("expected %d valid", w)
		}
	}
	for _, w := range []int{0, 3, 5, 8, -1} {
		if ValidWeight(w) {
			t.Fatalf("expected %d invalid", w)
		}
	}
}
