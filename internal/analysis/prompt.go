package analysis

import (
	"fmt"
	"strings"

	"litlens/internal/llm"
)

const analysisSystemPrompt = `You are a literary analyst. Respond with exactly one JSON object and nothing else: no prose, no markdown, no code fences.`

const analysisSchemaPrompt = `Analyze the following book excerpt and return a JSON object with this shape:
{
  "title": string,
  "author": string,
  "characters": [
    {
      "name": string,
      "importance": number from 1 to 10,
      "description": string,
      "moral_category": string,
      "relationships": [{"target": string, "description": string}]
    }
  ],
  "themes": [string],
  "plot_summary": string,
  "key_events": [{"event": string, "significance": string, "characters_involved": [string]}]
}

Book text:
`

// analysisMessages builds the chat messages for the structured analysis call.
func analysisMessages(text string) []llm.ChatMessage {
	return []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: analysisSystemPrompt},
		{Role: llm.RoleUser, Content: analysisSchemaPrompt + text},
	}
}

// chatMessages builds the messages for a reader conversation about a book,
// grounding the model in the already-computed analysis.
func chatMessages(result *AnalysisResult, history []llm.ChatMessage, message string) []llm.ChatMessage {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a helpful literary companion discussing %q by %s.\n",
		result.Title, result.Author)
	if result.Analysis.Summary != "" && result.Analysis.Summary != DefaultSummary {
		fmt.Fprintf(&sb, "Plot summary: %s\n", result.Analysis.Summary)
	}
	if len(result.Analysis.Themes) > 0 {
		fmt.Fprintf(&sb, "Major themes: %s\n", strings.Join(result.Analysis.Themes, ", "))
	}
	sb.WriteString("Answer the reader's questions about the book concisely.")

	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: sb.String()})
	for _, m := range history {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			messages = append(messages, m)
		}
	}
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: message})
	return messages
}
