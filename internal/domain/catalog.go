package domain

import "strings"

// RawQuestion is unvalidated catalog input as it arrives from config files
// or the catalogs table.
type RawQuestion struct {
	Title   string   `json:"title" yaml:"title"`
	Options []string `json:"options" yaml:"options"`
	Correct string   `json:"correct" yaml:"correct"`
}

// CatalogDocument is the stored form of a catalog before validation.
type CatalogDocument struct {
	ID        string        `json:"id"`
	Questions []RawQuestion `json:"questions"`
}

var allowedLabels = []string{"A", "B", "C"}

// NewCatalog validates raw questions into an immutable catalog. Option
// labels outside A/B/C are dropped, duplicates removed, and questions with
// fewer than two surviving options discarded. The correct option is trimmed
// and matched case-insensitively against the kept labels; when absent the
// question scores nobody. If nothing survives, a minimal default question
// is substituted so a session can always run.
func NewCatalog(id string, raw []RawQuestion) Catalog {
	questions := make([]Question, 0, len(raw))
	for _, rq := range raw {
		options := keepLabels(rq.Options)
		if len(options) < 2 {
			continue
		}
		q := Question{
			Title:   rq.Title,
			Options: options,
		}
		correct := strings.TrimSpace(rq.Correct)
		if canonical := q.CanonicalOption(correct); canonical != "" {
			q.CorrectOption = canonical
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		questions = []Question{{
			Title:         "Q1",
			Options:       []string{"A", "B"},
			CorrectOption: "A",
		}}
	}
	return Catalog{ID: id, Questions: questions}
}

func keepLabels(options []string) []string {
	kept := make([]string, 0, len(options))
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		label := strings.ToUpper(strings.TrimSpace(opt))
		if !isAllowedLabel(label) {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		kept = append(kept, label)
	}
	return kept
}

func isAllowedLabel(label string) bool {
	for _, allowed := range allowedLabels {
		if label == allowed {
			return true
		}
	}
	return false
}
