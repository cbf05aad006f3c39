package game

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/microcom/cyberquest/pkg/catalog"
	"github.com/microcom/cyberquest/pkg/render"
)

// ErrNoActiveSession is returned for answer/advance actions from a user
// with no session. The caller should prompt the user to start a new
// game; state is never fabricated.
var ErrNoActiveSession = errors.New("no active session")

const (
	DefaultWinAt  = 10
	DefaultLoseAt = 5

	lockShards = 64
)

// Engine is the per-user state machine. It validates each inbound
// action against the session's current stage and item, applies scoring,
// and produces a render-ready TurnResult.
//
// Mutation is serialized per user through striped locks, so two
// concurrent actions for one user are applied in arrival order while
// actions for different users proceed independently. The locks cover
// only store and in-memory work; nothing here calls out to chat or
// text-generation services.
type Engine struct {
	catalog *catalog.Catalog
	store   SessionStore
	logger  *slog.Logger
	winAt   int
	loseAt  int
	locks   [lockShards]sync.Mutex
}

// NewEngine creates an engine bound to one catalog and one session
// store. Non-positive thresholds fall back to the defaults; thresholds
// only apply to quiz catalogs.
func NewEngine(c *catalog.Catalog, store SessionStore, winAt, loseAt int, logger *slog.Logger) *Engine {
	if winAt <= 0 {
		winAt = DefaultWinAt
	}
	if loseAt <= 0 {
		loseAt = DefaultLoseAt
	}
	return &Engine{
		catalog: c,
		store:   store,
		logger:  logger,
		winAt:   winAt,
		loseAt:  loseAt,
	}
}

// WinAt returns the effective win threshold after default fallback.
func (e *Engine) WinAt() int { return e.winAt }

// LoseAt returns the effective lose threshold after default fallback.
func (e *Engine) LoseAt() int { return e.loseAt }

func (e *Engine) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &e.locks[h.Sum32()%lockShards]
}

func (e *Engine) quiz() bool {
	return e.catalog.Mode() == catalog.ModeQuiz
}

// StartSession begins a fresh play-through for the user. An existing
// session, whatever its stage, is reset: counters return to zero and a
// new run begins at the first item.
func (e *Engine) StartSession(ctx context.Context, userID, playerName string) (*TurnResult, error) {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create session: %w", err)
	}
	if s.Stage != StageAwaitingStart {
		// Explicit reset: discard the old run entirely.
		s = NewSession(userID)
	}

	s.PlayerName = playerName
	s.Stage = StageInProgress
	s.Step = 1
	if e.quiz() {
		s.CurrentItem = nextQuizItem(s, e.catalog)
		s.Phase = PhaseQuestion
	} else {
		s.CurrentItem = e.catalog.Root()
	}
	s.Touch()

	if err := e.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	item, err := e.catalog.Get(s.CurrentItem)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Session started",
		"user_id", userID,
		"session_id", s.ID,
		"mode", e.catalog.Mode(),
		"first_item", s.CurrentItem)

	return e.continueTurn(s, item), nil
}

// SubmitAnswer applies the user's chosen option to the current item.
// An option that does not belong to the session's current item is a
// stale click (replayed button, double click) and is rejected without
// mutating any state, so retries are harmless.
func (e *Engine) SubmitAnswer(ctx context.Context, userID, itemID, optionID string) (*TurnResult, error) {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.activeSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	if e.quiz() && s.Phase != PhaseQuestion {
		return e.rejectedTurn(s, "answer already recorded; advance to the next question"), nil
	}
	if itemID != s.CurrentItem {
		e.logger.Debug("Stale answer ignored", "user_id", userID, "item_id", itemID, "current_item", s.CurrentItem)
		return e.rejectedTurn(s, "answer does not match the current item"), nil
	}

	item, err := e.catalog.Get(s.CurrentItem)
	if err != nil {
		return nil, err
	}
	opt, err := item.Option(optionID)
	if err != nil {
		e.logger.Debug("Unknown option ignored", "user_id", userID, "item_id", itemID, "option_id", optionID)
		return e.rejectedTurn(s, "option does not belong to the current item"), nil
	}

	if e.quiz() {
		return e.applyQuizAnswer(ctx, s, opt)
	}
	return e.applyAdventureChoice(ctx, s, opt)
}

func (e *Engine) applyQuizAnswer(ctx context.Context, s *Session, opt *catalog.Option) (*TurnResult, error) {
	if opt.Correct {
		s.Correct++
	} else {
		s.Wrong++
	}
	s.Step++
	s.Phase = PhaseFeedback
	s.Touch()

	// Win is checked before lose so win takes priority if both
	// thresholds are ever satisfied at once.
	switch {
	case s.Correct >= e.winAt:
		return e.finishRun(ctx, s, OutcomeWon, opt.Why)
	case s.Wrong >= e.loseAt:
		return e.finishRun(ctx, s, OutcomeLost, opt.Why)
	}

	if err := e.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	outcome := OutcomeIncorrect
	if opt.Correct {
		outcome = OutcomeCorrect
	}
	return &TurnResult{
		Outcome:  outcome,
		ItemID:   s.CurrentItem,
		Feedback: opt.Why,
		Correct:  s.Correct,
		Wrong:    s.Wrong,
		Step:     s.Step,
	}, nil
}

func (e *Engine) applyAdventureChoice(ctx context.Context, s *Session, opt *catalog.Option) (*TurnResult, error) {
	next, err := e.catalog.Get(opt.Next)
	if err != nil {
		return nil, err
	}

	s.AddTags(opt.Tags)
	s.Score += opt.ScoreChange
	s.CurrentItem = next.ID
	s.Step++
	s.Touch()

	if next.IsTerminal() {
		// An item with no outgoing choices is an ending.
		result, err := e.finishRun(ctx, s, OutcomeEnded, opt.Why)
		if err != nil {
			return nil, err
		}
		result.ItemID = next.ID
		result.Prompt = render.Interpolate(next.Prompt, s.PlayerName)
		return result, nil
	}

	if err := e.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	result := e.continueTurn(s, next)
	result.Feedback = opt.Why
	return result, nil
}

// Advance moves a quiz session past the feedback turn to the next
// question. The expected item ID guards against replayed clicks: a
// stale advance is rejected without selecting a new item.
func (e *Engine) Advance(ctx context.Context, userID, itemID string) (*TurnResult, error) {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.activeSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !e.quiz() {
		return e.rejectedTurn(s, "nothing to advance; choices move the story forward"), nil
	}
	if s.Phase != PhaseFeedback {
		return e.rejectedTurn(s, "no feedback to advance past"), nil
	}
	if itemID != s.CurrentItem {
		e.logger.Debug("Stale advance ignored", "user_id", userID, "item_id", itemID, "current_item", s.CurrentItem)
		return e.rejectedTurn(s, "advance does not match the current item"), nil
	}

	nextID := nextQuizItem(s, e.catalog)
	item, err := e.catalog.Get(nextID)
	if err != nil {
		return nil, err
	}

	s.CurrentItem = nextID
	s.Phase = PhaseQuestion
	s.Step++
	s.Touch()

	if err := e.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return e.continueTurn(s, item), nil
}

// CurrentState returns a read-only snapshot of the user's session, or
// nil if the user has none.
func (e *Engine) CurrentState(ctx context.Context, userID string) (*Session, error) {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	s, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return s.Clone(), nil
}

// activeSession loads an in-progress session for a mutating action.
// A terminal session left behind in the store is removed on sight, so
// the user's next start begins from scratch.
func (e *Engine) activeSession(ctx context.Context, userID string) (*Session, error) {
	s, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil, ErrNoActiveSession
	}
	if s.Stage != StageInProgress {
		if s.Stage == StageTerminal {
			if err := e.store.Remove(ctx, userID); err != nil {
				return nil, fmt.Errorf("failed to remove finished session: %w", err)
			}
		}
		return nil, ErrNoActiveSession
	}
	return s, nil
}

// finishRun transitions the session to terminal and removes it from the
// store. The next start action creates a fresh session.
func (e *Engine) finishRun(ctx context.Context, s *Session, outcome Outcome, feedback string) (*TurnResult, error) {
	s.Stage = StageTerminal
	if err := e.store.Remove(ctx, s.UserID); err != nil {
		return nil, fmt.Errorf("failed to remove finished session: %w", err)
	}

	e.logger.Info("Session finished",
		"user_id", s.UserID,
		"session_id", s.ID,
		"outcome", outcome,
		"correct", s.Correct,
		"wrong", s.Wrong,
		"score", s.Score)

	return &TurnResult{
		Outcome:  outcome,
		Feedback: feedback,
		Correct:  s.Correct,
		Wrong:    s.Wrong,
		Score:    s.Score,
		Tags:     append([]string(nil), s.Tags...),
		Step:     s.Step,
	}, nil
}

// continueTurn builds the result presenting the session's current item.
func (e *Engine) continueTurn(s *Session, item *catalog.Item) *TurnResult {
	return &TurnResult{
		Outcome: OutcomeContinue,
		ItemID:  item.ID,
		Prompt:  render.Interpolate(item.Prompt, s.PlayerName),
		Choices: presentChoices(item, s.Seed, s.Step, e.quiz()),
		Correct: s.Correct,
		Wrong:   s.Wrong,
		Score:   s.Score,
		Tags:    append([]string(nil), s.Tags...),
		Step:    s.Step,
	}
}

// rejectedTurn re-renders the session's current state without mutating
// it, so duplicate clicks and replays are no-ops rather than
// double-counts.
func (e *Engine) rejectedTurn(s *Session, reason string) *TurnResult {
	result := &TurnResult{
		Outcome: OutcomeRejected,
		Reason:  reason,
		ItemID:  s.CurrentItem,
		Correct: s.Correct,
		Wrong:   s.Wrong,
		Score:   s.Score,
		Tags:    append([]string(nil), s.Tags...),
		Step:    s.Step,
	}

	// Re-present the current question when the session is waiting on
	// one; feedback turns carry no choices.
	if !e.quiz() || s.Phase == PhaseQuestion {
		if item, err := e.catalog.Get(s.CurrentItem); err == nil {
			result.Prompt = render.Interpolate(item.Prompt, s.PlayerName)
			result.Choices = presentChoices(item, s.Seed, s.Step, e.quiz())
		}
	}
	return result
}
