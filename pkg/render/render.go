// Package render holds small pure helpers for turning game state into
// presentable text. Chat-platform specifics (block kits, markdown
// dialects) stay with the callers; everything here is plain strings.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const barLength = 10

var titleCaser = cases.Title(language.English)

// ProgressBar renders a quiz tally as a fixed-width bar with the
// running counts, e.g. `[███░░░░░░░] 3/10 correct, 1/5 wrong`.
func ProgressBar(correct, wrong, winAt, loseAt int) string {
	filled := correct
	if winAt > 0 {
		filled = correct * barLength / winAt
	}
	if filled > barLength {
		filled = barLength
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barLength-filled)
	return fmt.Sprintf("[%s] %d/%d correct, %d/%d wrong", bar, correct, winAt, wrong, loseAt)
}

// Interpolate substitutes the player's name into a prompt template.
// Prompts use a {player_name} placeholder; an empty name falls back to
// a generic address so templates never render a hole.
func Interpolate(prompt, playerName string) string {
	if playerName == "" {
		playerName = "recruit"
	}
	return strings.ReplaceAll(prompt, "{player_name}", playerName)
}

// DisplayName normalizes a raw chat handle into a presentable player
// name: `@jane.doe` becomes `Jane Doe`.
func DisplayName(handle string) string {
	name := strings.TrimPrefix(strings.TrimSpace(handle), "@")
	name = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return titleCaser.String(name)
}
