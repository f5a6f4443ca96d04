package ai

import (
	"fmt"
	"strings"
)

// contextWindow is the number of recent messages handed to the model
const contextWindow = 10

// defaultRules are the fixed behavioral rules appended to every prompt.
// They are data so tests can assert on them independently of formatting.
var defaultRules = []string{
	"Responde siempre en español a menos que el usuario escriba en otro idioma.",
	"Sé conciso pero útil.",
	"No inventes información que no esté en la conversación.",
	"Si no sabes algo, dilo claramente.",
	"Mantén un tono amigable y profesional.",
}

// TranscriptEntry is one message of the conversation context
type TranscriptEntry struct {
	Author  string `json:"author"`
	Content string `json:"content"`
	IsAI    bool   `json:"is_ai"`
}

// PromptBuilder assembles the system instruction from typed fields instead
// of ad-hoc string concatenation
type PromptBuilder struct {
	PersonaName  string
	Instructions string
	Transcript   []TranscriptEntry
	Rules        []string
}

// NewPromptBuilder creates a builder with the default behavioral rules
func NewPromptBuilder(personaName, instructions string) *PromptBuilder {
	return &PromptBuilder{
		PersonaName:  personaName,
		Instructions: instructions,
		Rules:        defaultRules,
	}
}

// WithTranscript sets the conversation context, keeping only the most
// recent entries up to the context window, in chronological order.
func (b *PromptBuilder) WithTranscript(entries []TranscriptEntry) *PromptBuilder {
	if len(entries) > contextWindow {
		entries = entries[len(entries)-contextWindow:]
	}
	b.Transcript = entries
	return b
}

// Build produces the final system instruction
func (b *PromptBuilder) Build() string {
	var sb strings.Builder

	sb.WriteString(b.Instructions)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Tu nombre es %q. Eres un participante especial en este grupo de chat.\n\n", b.PersonaName)

	sb.WriteString("Contexto reciente de la conversación:\n")
	for _, entry := range b.Transcript {
		author := entry.Author
		if entry.IsAI {
			author = b.PersonaName
		}
		fmt.Fprintf(&sb, "%s: %s\n", author, entry.Content)
	}

	sb.WriteString("\nReglas importantes:\n")
	for _, rule := range b.Rules {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}

	return sb.String()
}
