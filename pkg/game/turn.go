package game

import (
	"math/rand"

	"github.com/microcom/cyberquest/pkg/catalog"
)

// Outcome tags what happened on one action.
type Outcome string

const (
	OutcomeContinue  Outcome = "continue"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeWon       Outcome = "won"
	OutcomeLost      Outcome = "lost"
	OutcomeEnded     Outcome = "ended"
	OutcomeRejected  Outcome = "rejected"
)

// TurnChoice is one option in the order it should be shown, with the
// display label assigned for this turn.
type TurnChoice struct {
	Label    string `json:"label"`
	OptionID string `json:"option_id"`
	Text     string `json:"text"`
}

// TurnResult describes the outcome of a single action: the item to
// present next (if any), a score snapshot, and an outcome tag. It is
// produced fresh per call and never stored.
type TurnResult struct {
	Outcome Outcome `json:"outcome"`

	// Reason is set on rejected outcomes only.
	Reason string `json:"reason,omitempty"`

	ItemID   string       `json:"item_id,omitempty"`
	Prompt   string       `json:"prompt,omitempty"`
	Choices  []TurnChoice `json:"choices,omitempty"`
	Feedback string       `json:"feedback,omitempty"`

	Correct int      `json:"correct"`
	Wrong   int      `json:"wrong"`
	Score   int      `json:"score"`
	Tags    []string `json:"tags,omitempty"`
	Step    int      `json:"step"`
}

var choiceLabels = []string{"a", "b", "c", "d", "e", "f", "g", "h"}

// presentChoices builds the label-to-option mapping for one turn. For
// quiz items the option order is a pure function of (seed, step), so
// re-rendering the same turn always shows the same mapping and a later
// answer can be validated against exactly what was shown. Adventure
// items keep their declared order to preserve causal continuity.
func presentChoices(item *catalog.Item, seed int64, step int, shuffle bool) []TurnChoice {
	order := make([]int, len(item.Options))
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng := rand.New(rand.NewSource(seed + int64(step)*0x9e3779b9))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	choices := make([]TurnChoice, len(order))
	for i, optIdx := range order {
		opt := item.Options[optIdx]
		label := opt.ID
		if i < len(choiceLabels) {
			label = choiceLabels[i]
		}
		choices[i] = TurnChoice{
			Label:    label,
			OptionID: opt.ID,
			Text:     opt.Text,
		}
	}
	return choices
}
