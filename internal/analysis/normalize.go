package analysis

import (
	"encoding/json"
	"strings"

	"litlens/internal/apperr"
)

// Normalize converts an untrusted model response into a BookAnalysis. The
// only fatal condition is failing to recover a JSON object at all; every
// missing or wrong-typed field falls back to a default. A response whose JSON
// carries no recognizable analysis keys yields a structurally valid result of
// defaults — "no themes detected" is a legitimate outcome, not an error.
//
// sourceWordCount is the caller-computed word count of the source text; the
// model's own word count claims are never trusted.
func Normalize(raw string, sourceWordCount int) (*BookAnalysis, error) {
	obj, err := recoverJSONObject(raw)
	if err != nil {
		return nil, err
	}

	if sourceWordCount < 0 {
		sourceWordCount = 0
	}

	out := &BookAnalysis{
		Title:                  stringField(obj, "title", "Unknown Title"),
		Author:                 stringField(obj, "author", "Unknown Author"),
		CharacterRelationships: []CharacterRelationship{},
		KeyCharacters:          []KeyCharacter{},
		Themes:                 stringList(obj["themes"]),
		Summary:                stringField(obj, "plot_summary", ""),
		WordCount:              sourceWordCount,
		KeyEvents:              []KeyEvent{},
	}

	if out.Summary == "" {
		out.Summary = stringField(obj, "summary", DefaultSummary)
	}

	for _, raw := range anyList(obj["characters"]) {
		ch, ok := parseCharacter(raw)
		if !ok {
			continue
		}
		out.KeyCharacters = append(out.KeyCharacters, ch.KeyCharacter)
		for _, rel := range ch.relationships {
			out.CharacterRelationships = append(out.CharacterRelationships, CharacterRelationship{
				Character1:   ch.Name,
				Character2:   rel.target,
				Relationship: rel.description,
				Strength:     StrengthModerate,
			})
		}
	}

	for _, raw := range anyList(obj["key_events"]) {
		ev, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out.KeyEvents = append(out.KeyEvents, KeyEvent{
			Event:              stringField(ev, "event", ""),
			Significance:       stringField(ev, "significance", ""),
			CharactersInvolved: stringList(ev["characters_involved"]),
		})
	}

	return out, nil
}

// CountWords returns the whitespace-delimited token count of text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// recoverJSONObject extracts and parses the single JSON object a model
// response claims to contain. Direct parse of the fence-stripped text first;
// on failure, a depth-tracking scan of the raw string.
func recoverJSONObject(raw string) (map[string]any, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))

	if strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(cleaned), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}

	if span, ok := extractJSONObject(raw); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(span), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}

	return nil, apperr.UnparsableResponse("model response contained no parsable JSON object", nil)
}

// stripCodeFences removes a single leading code-fence marker (with or without
// a language tag) and a single trailing one. Best-effort textual strip, not a
// markdown parser.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = s[len("```"):]
	// Drop the language tag up to the first newline.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimSpace(s)
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject scans s for the first balanced top-level {...} span. The
// scanner tracks string literals and escapes, so braces inside strings and
// stray braces in surrounding prose do not confuse it.
func extractJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}

type parsedCharacter struct {
	KeyCharacter
	relationships []parsedRelationship
}

type parsedRelationship struct {
	target      string
	description string
}

// parseCharacter accepts both observed character shapes: a rich object or a
// bare name string (legacy prompt output, up-converted with defaults).
func parseCharacter(raw any) (parsedCharacter, bool) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return parsedCharacter{}, false
		}
		return parsedCharacter{KeyCharacter: KeyCharacter{Name: v}}, true
	case map[string]any:
		name := stringField(v, "name", "")
		if name == "" {
			return parsedCharacter{}, false
		}
		ch := parsedCharacter{
			KeyCharacter: KeyCharacter{
				Name:          name,
				Importance:    numberField(v, "importance"),
				Description:   stringField(v, "description", ""),
				MoralCategory: stringField(v, "moral_category", ""),
			},
		}
		for _, relRaw := range anyList(v["relationships"]) {
			rel, ok := relRaw.(map[string]any)
			if !ok {
				continue
			}
			ch.relationships = append(ch.relationships, parsedRelationship{
				target:      stringField(rel, "target", ""),
				description: stringField(rel, "description", ""),
			})
		}
		return ch, true
	default:
		return parsedCharacter{}, false
	}
}

func stringField(obj map[string]any, key, def string) string {
	if v, ok := obj[key].(string); ok && v != "" {
		return v
	}
	return def
}

func numberField(obj map[string]any, key string) float64 {
	if v, ok := obj[key].(float64); ok {
		return v
	}
	return 0
}

func anyList(v any) []any {
	list, _ := v.([]any)
	return list
}

func stringList(v any) []string {
	out := []string{}
	for _, item := range anyList(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
