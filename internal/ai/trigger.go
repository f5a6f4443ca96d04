package ai

import "regexp"

// mentionPattern matches the literal tokens that summon the AI participant.
// A plain substring test on the raw text, matching the tokens @ia,
// @asistente and @ai in any case.
var mentionPattern = regexp.MustCompile(`(?i)@(ia|asistente|ai)`)

// MentionsAI reports whether a message tags the AI participant
func MentionsAI(content string) bool {
	return mentionPattern.MatchString(content)
}
