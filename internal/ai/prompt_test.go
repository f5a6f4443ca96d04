package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptBuilder(t *testing.T) {
	t.Run("carries instructions, name, transcript and rules", func(t *testing.T) {
		prompt := NewPromptBuilder("Sócrates", "Responde con preguntas.").
			WithTranscript([]TranscriptEntry{
				{Author: "Ana", Content: "hola"},
				{Author: "Blas", Content: "buenas"},
			}).
			Build()

		assert.True(t, strings.HasPrefix(prompt, "Responde con preguntas."))
		assert.Contains(t, prompt, `Tu nombre es "Sócrates".`)
		assert.Contains(t, prompt, "Ana: hola")
		assert.Contains(t, prompt, "Blas: buenas")
		for _, rule := range defaultRules {
			assert.Contains(t, prompt, "- "+rule)
		}
	})

	t.Run("ai entries show the persona name", func(t *testing.T) {
		prompt := NewPromptBuilder("Sócrates", "x").
			WithTranscript([]TranscriptEntry{
				{Author: "cualquier cosa", Content: "respuesta previa", IsAI: true},
			}).
			Build()

		assert.Contains(t, prompt, "Sócrates: respuesta previa")
		assert.NotContains(t, prompt, "cualquier cosa:")
	})

	t.Run("transcript is capped at the most recent entries", func(t *testing.T) {
		var entries []TranscriptEntry
		for i := 0; i < 25; i++ {
			entries = append(entries, TranscriptEntry{Author: "Ana", Content: fmt.Sprintf("mensaje %d", i)})
		}

		prompt := NewPromptBuilder("Asistente", "x").WithTranscript(entries).Build()

		assert.NotContains(t, prompt, "mensaje 14")
		assert.Contains(t, prompt, "mensaje 15")
		assert.Contains(t, prompt, "mensaje 24")
	})

	t.Run("empty transcript still builds", func(t *testing.T) {
		prompt := NewPromptBuilder("Asistente", "x").Build()
		assert.Contains(t, prompt, "Contexto reciente de la conversación:")
		assert.Contains(t, prompt, "Reglas importantes:")
	})
}
