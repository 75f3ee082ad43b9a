// Package analysis turns raw model output into a stable, UI-facing analysis
// schema and coordinates it with the cache.
package analysis

// StrengthModerate is the fixed relationship strength. The model is never
// asked to grade strength; the placeholder is part of the output contract.
const StrengthModerate = "moderate"

// DefaultSummary is the summary placeholder when the model provides none.
const DefaultSummary = "No summary available"

// CharacterRelationship is one edge of the relationship graph. character2 is
// a name reference, not a validated foreign key; dangling references are
// preserved as-is.
type CharacterRelationship struct {
	Character1   string `json:"character1"`
	Character2   string `json:"character2"`
	Relationship string `json:"relationship"`
	Strength     string `json:"strength"`
}

type KeyCharacter struct {
	Name          string  `json:"name"`
	Importance    float64 `json:"importance"`
	Description   string  `json:"description"`
	MoralCategory string  `json:"moral_category"`
}

type KeyEvent struct {
	Event              string   `json:"event"`
	Significance       string   `json:"significance"`
	CharactersInvolved []string `json:"characters_involved"`
}

// BookAnalysis is the normalized output contract. Every field is always
// present and type-correct; list fields are never nil.
type BookAnalysis struct {
	Title                  string                  `json:"title"`
	Author                 string                  `json:"author"`
	CharacterRelationships []CharacterRelationship `json:"characterRelationships"`
	KeyCharacters          []KeyCharacter          `json:"keyCharacters"`
	Themes                 []string                `json:"themes"`
	Summary                string                  `json:"summary"`
	WordCount              int                     `json:"wordCount"`
	KeyEvents              []KeyEvent              `json:"keyEvents"`
}

// AnalysisResult is the persisted/returned unit. Immutable after creation;
// its lifecycle ends only via explicit cache deletion (or TTL, if one were
// configured for analysis entries).
type AnalysisResult struct {
	BookID    string       `json:"bookId"`
	Title     string       `json:"title"`
	Author    string       `json:"author"`
	Analysis  BookAnalysis `json:"analysis"`
	Timestamp string       `json:"timestamp"`
}

// CacheStatus reports which cache entries exist for a book.
type CacheStatus struct {
	BookTextCached bool `json:"bookTextCached"`
	AnalysisCached bool `json:"analysisCached"`
}
