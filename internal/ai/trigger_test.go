package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMentionsAI(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"hola a todos", false},
		{"@ia ¿qué opinas?", true},
		{"pregunta para @asistente", true},
		{"@ai what do you think", true},
		{"@IA EN MAYÚSCULAS", true},
		{"@Asistente con mayúscula", true},
		{"correo ia@example.com", false},
		{"", false},
		{"@otro usuario", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MentionsAI(tc.content), "content: %q", tc.content)
	}
}
