package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Stage is the lifecycle stage of a session.
type Stage string

const (
	StageAwaitingStart Stage = "awaiting_start"
	StageInProgress    Stage = "in_progress"
	StageTerminal      Stage = "terminal"
)

// Phase distinguishes the two halves of a quiz turn while a session is
// in progress: waiting for an answer to the current question, or
// waiting for the player to advance past the feedback.
type Phase string

const (
	PhaseQuestion Phase = "question"
	PhaseFeedback Phase = "feedback"
)

// Session is the mutable play state for a single user. It is owned by
// exactly one user ID and mutated only under that user's serialization
// in the engine. The struct is JSON-serializable so stores can persist
// it as a value.
type Session struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	PlayerName string    `json:"player_name,omitempty"`

	Stage Stage `json:"stage"`
	Phase Phase `json:"phase,omitempty"`

	// CurrentItem always resolves in the catalog while the session is
	// in progress.
	CurrentItem string `json:"current_item,omitempty"`

	// Step increments on every accepted mutation. Presentation order of
	// options is a pure function of (Seed, Step), so a replayed click
	// from an earlier step can be detected and re-rendered exactly.
	Step int `json:"step"`

	// Quiz tally.
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`

	// Adventure progress.
	Tags  []string `json:"tags,omitempty"`
	Score int      `json:"score"`

	// Rotation is the session-scoped shuffled permutation of item IDs
	// for quiz selection; Cursor indexes the next unplayed entry.
	Rotation []string `json:"rotation,omitempty"`
	Cursor   int      `json:"cursor"`

	Seed         int64     `json:"seed"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewSession creates an empty session awaiting its first start action.
func NewSession(userID string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New(),
		UserID:       userID,
		Stage:        StageAwaitingStart,
		Seed:         rand.Int63(),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AddTags unions the given tags into the session's tag set, preserving
// first-seen order.
func (s *Session) AddTags(tags []string) {
	for _, tag := range tags {
		if !s.HasTag(tag) {
			s.Tags = append(s.Tags, tag)
		}
	}
}

// HasTag reports whether the session has accumulated the given tag.
func (s *Session) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Touch records activity for idle sweeping.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}

// Clone returns a deep copy, safe to hand to callers outside the
// session's serialization.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Tags = append([]string(nil), s.Tags...)
	cp.Rotation = append([]string(nil), s.Rotation...)
	return &cp
}
