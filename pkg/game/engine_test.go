package game_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microcom/cyberquest/pkg/catalog"
	"github.com/microcom/cyberquest/pkg/game"
	"github.com/microcom/cyberquest/pkg/storage"
)

const quizJSON = `{
	"name": "Engine Test Quiz",
	"mode": "quiz",
	"items": [
		{"id": "q1", "prompt": "Q1?", "options": [
			{"id": "right", "text": "Yes", "correct": true, "why": "Yes indeed."},
			{"id": "wrong", "text": "No", "why": "Not this one."}
		]},
		{"id": "q2", "prompt": "Q2?", "options": [
			{"id": "right", "text": "Yes", "correct": true, "why": "Yes indeed."},
			{"id": "wrong", "text": "No", "why": "Not this one."}
		]},
		{"id": "q3", "prompt": "Q3?", "options": [
			{"id": "right", "text": "Yes", "correct": true, "why": "Yes indeed."},
			{"id": "wrong", "text": "No", "why": "Not this one."}
		]},
		{"id": "q4", "prompt": "Q4?", "options": [
			{"id": "right", "text": "Yes", "correct": true, "why": "Yes indeed."},
			{"id": "wrong", "text": "No", "why": "Not this one."}
		]},
		{"id": "q5", "prompt": "Q5?", "options": [
			{"id": "right", "text": "Yes", "correct": true, "why": "Yes indeed."},
			{"id": "wrong", "text": "No", "why": "Not this one."}
		]}
	]
}`

const adventureJSON = `{
	"name": "Engine Test Adventure",
	"mode": "adventure",
	"root": "start",
	"items": [
		{"id": "start", "prompt": "Hello {player_name}.", "options": [
			{"id": "a", "text": "Go on", "next": "mid", "tags": ["brave"], "score_change": 1},
			{"id": "b", "text": "Stop", "next": "end_b", "tags": ["careful"]}
		]},
		{"id": "mid", "prompt": "Deeper in.", "options": [
			{"id": "a", "text": "Push forward", "next": "end_a", "tags": ["brave", "bold"], "score_change": 2},
			{"id": "b", "text": "Turn back", "next": "end_b"}
		]},
		{"id": "end_a", "prompt": "A good ending, {player_name}.", "options": []},
		{"id": "end_b", "prompt": "A quiet ending.", "options": []}
	]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func newQuizEngine(t *testing.T, winAt, loseAt int) *game.Engine {
	t.Helper()
	cat, err := catalog.Parse("quiz.json", []byte(quizJSON))
	require.NoError(t, err)
	return game.NewEngine(cat, storage.NewMemoryStore(), winAt, loseAt, testLogger())
}

func newAdventureEngine(t *testing.T) *game.Engine {
	t.Helper()
	cat, err := catalog.Parse("adventure.json", []byte(adventureJSON))
	require.NoError(t, err)
	return game.NewEngine(cat, storage.NewMemoryStore(), 0, 0, testLogger())
}

func TestEngine_QuizCorrectTally(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 10, 5)

	turn, err := engine.StartSession(ctx, "u1", "Jane")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeContinue, turn.Outcome)
	assert.Len(t, turn.Choices, 2)

	for i := 1; i <= 4; i++ {
		answer, err := engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
		require.NoError(t, err)
		assert.Equal(t, game.OutcomeCorrect, answer.Outcome)
		assert.Equal(t, i, answer.Correct)
		assert.Equal(t, 0, answer.Wrong)
		assert.Equal(t, "Yes indeed.", answer.Feedback)

		turn, err = engine.Advance(ctx, "u1", answer.ItemID)
		require.NoError(t, err)
		assert.Equal(t, game.OutcomeContinue, turn.Outcome)
	}

	s, err := engine.CurrentState(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 4, s.Correct)
	assert.Equal(t, 0, s.Wrong)
	assert.Equal(t, game.StageInProgress, s.Stage)
}

func TestEngine_StaleAnswerIgnored(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 10, 5)

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)

	// An option replayed against a different item must not change
	// score or stage.
	staleItem := "q1"
	if turn.ItemID == "q1" {
		staleItem = "q2"
	}
	rejected, err := engine.SubmitAnswer(ctx, "u1", staleItem, "right")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeRejected, rejected.Outcome)
	assert.Equal(t, 0, rejected.Correct)
	assert.Equal(t, 0, rejected.Wrong)
	// The current question is re-presented unchanged.
	assert.Equal(t, turn.ItemID, rejected.ItemID)
	assert.Equal(t, turn.Choices, rejected.Choices)

	// An option id that does not exist on the current item is equally
	// stale.
	rejected, err = engine.SubmitAnswer(ctx, "u1", turn.ItemID, "bogus")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeRejected, rejected.Outcome)

	s, err := engine.CurrentState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Correct)
	assert.Equal(t, 0, s.Wrong)
	assert.Equal(t, game.StageInProgress, s.Stage)
}

func TestEngine_DuplicateAnswerIsNoOp(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 10, 5)

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)

	first, err := engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeCorrect, first.Outcome)
	assert.Equal(t, 1, first.Correct)

	// The double click lands while feedback is showing: rejected, not
	// double-counted.
	second, err := engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeRejected, second.Outcome)
	assert.Equal(t, 1, second.Correct)
}

func TestEngine_AdvanceReplayRejected(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 10, 5)

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)
	answered := turn.ItemID

	// Advance before answering is rejected.
	rejected, err := engine.Advance(ctx, "u1", answered)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeRejected, rejected.Outcome)

	_, err = engine.SubmitAnswer(ctx, "u1", answered, "right")
	require.NoError(t, err)

	next, err := engine.Advance(ctx, "u1", answered)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeContinue, next.Outcome)

	// Replaying the advance button from the previous feedback turn
	// must not skip a question.
	replay, err := engine.Advance(ctx, "u1", answered)
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeRejected, replay.Outcome)

	s, err := engine.CurrentState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, next.ItemID, s.CurrentItem)
}

func TestEngine_WinBeforeLose(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 1, 1)

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)

	// With both thresholds at 1 the first correct answer must end in
	// a win, never a loss.
	result, err := engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeWon, result.Outcome)
	assert.Equal(t, 1, result.Correct)
}

func TestEngine_LoseThreshold(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 10, 1)

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)

	result, err := engine.SubmitAnswer(ctx, "u1", turn.ItemID, "wrong")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeLost, result.Outcome)
	assert.Equal(t, 1, result.Wrong)
}

func TestEngine_TerminalRemovesSession(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 1, 5)

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)

	result, err := engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeWon, result.Outcome)

	s, err := engine.CurrentState(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, s)

	// Actions after the ending have no session to act on.
	_, err = engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
	assert.ErrorIs(t, err, game.ErrNoActiveSession)

	// A fresh start begins from zero.
	fresh, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, game.OutcomeContinue, fresh.Outcome)
	assert.Equal(t, 0, fresh.Correct)
	assert.Equal(t, 0, fresh.Wrong)
}

func TestEngine_StartResetsExistingRun(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 10, 5)

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)

	_, err = engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
	require.NoError(t, err)

	restarted, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, restarted.Correct)

	s, err := engine.CurrentState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Correct)
	assert.Equal(t, game.StageInProgress, s.Stage)
}

func TestEngine_NoActiveSession(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 10, 5)

	_, err := engine.SubmitAnswer(ctx, "ghost", "q1", "right")
	assert.ErrorIs(t, err, game.ErrNoActiveSession)

	_, err = engine.Advance(ctx, "ghost", "q1")
	assert.ErrorIs(t, err, game.ErrNoActiveSession)

	s, err := engine.CurrentState(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestEngine_QuizRotationCoversAllItems(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 100, 100)

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)

	seen := map[string]bool{turn.ItemID: true}
	for i := 0; i < 4; i++ {
		answer, err := engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
		require.NoError(t, err)
		turn, err = engine.Advance(ctx, "u1", answer.ItemID)
		require.NoError(t, err)
		assert.False(t, seen[turn.ItemID], "item %s repeated before the rotation was exhausted", turn.ItemID)
		seen[turn.ItemID] = true
	}
	assert.Len(t, seen, 5)
}

func playAdventureFirstChoice(t *testing.T, engine *game.Engine, userID string) *game.TurnResult {
	t.Helper()
	ctx := context.Background()

	turn, err := engine.StartSession(ctx, userID, "jane.doe")
	require.NoError(t, err)

	for turn.Outcome == game.OutcomeContinue {
		require.NotEmpty(t, turn.Choices)
		turn, err = engine.SubmitAnswer(ctx, userID, turn.ItemID, turn.Choices[0].OptionID)
		require.NoError(t, err)
	}
	return turn
}

func TestEngine_AdventureFirstChoiceIsDeterministic(t *testing.T) {
	engine := newAdventureEngine(t)

	first := playAdventureFirstChoice(t, engine, "u1")
	second := playAdventureFirstChoice(t, engine, "u1")

	assert.Equal(t, game.OutcomeEnded, first.Outcome)
	assert.Equal(t, first.ItemID, second.ItemID)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, first.Score, second.Score)
}

func TestEngine_AdventureTagsAndScore(t *testing.T) {
	engine := newAdventureEngine(t)

	result := playAdventureFirstChoice(t, engine, "u1")
	assert.Equal(t, game.OutcomeEnded, result.Outcome)
	assert.Equal(t, "end_a", result.ItemID)
	// "brave" is granted twice along the path but tags are a set.
	assert.Equal(t, []string{"brave", "bold"}, result.Tags)
	assert.Equal(t, 3, result.Score)
}

func TestEngine_AdventureInterpolatesPlayerName(t *testing.T) {
	ctx := context.Background()
	engine := newAdventureEngine(t)

	turn, err := engine.StartSession(ctx, "u1", "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "Hello Jane Doe.", turn.Prompt)
}

func TestEngine_AdventureSessionEndsAtTerminalItem(t *testing.T) {
	ctx := context.Background()
	engine := newAdventureEngine(t)

	playAdventureFirstChoice(t, engine, "u1")

	s, err := engine.CurrentState(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

// The idle sweeper runs alongside live play on the memory backend, so
// turn processing must never share mutable session state with it.
// Run with -race.
func TestEngine_PlayDuringIdleSweepIsSafe(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.Parse("quiz.json", []byte(quizJSON))
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	engine := game.NewEngine(cat, store, 1000, 1000, testLogger())

	turn, err := engine.StartSession(ctx, "u1", "")
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, err := store.SweepIdle(ctx, time.Hour); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	const rounds = 200
	for i := 0; i < rounds; i++ {
		answer, err := engine.SubmitAnswer(ctx, "u1", turn.ItemID, "right")
		require.NoError(t, err)
		turn, err = engine.Advance(ctx, "u1", answer.ItemID)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	s, err := engine.CurrentState(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, rounds, s.Correct)
	assert.Equal(t, 0, s.Wrong)
}

func TestEngine_ConcurrentUsersDoNotInterleave(t *testing.T) {
	ctx := context.Background()
	engine := newQuizEngine(t, 1000, 1000)

	const users = 8
	const answersPerUser = 20

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn, err := engine.StartSession(ctx, userID, "")
			if err != nil {
				errs <- err
				return
			}
			for i := 0; i < answersPerUser; i++ {
				answer, err := engine.SubmitAnswer(ctx, userID, turn.ItemID, "right")
				if err != nil {
					errs <- err
					return
				}
				turn, err = engine.Advance(ctx, userID, answer.ItemID)
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		s, err := engine.CurrentState(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, answersPerUser, s.Correct, "user %s", userID)
		assert.Equal(t, 0, s.Wrong, "user %s", userID)
	}
}
