package catalog

import (
	"errors"
	"fmt"
)

// Mode selects how a catalog's items are traversed and scored.
type Mode string

const (
	// ModeQuiz presents items in a shuffled rotation and scores each
	// option as correct or incorrect.
	ModeQuiz Mode = "quiz"

	// ModeAdventure follows the next-item edge declared on each option.
	// Items with no options are endings.
	ModeAdventure Mode = "adventure"
)

var (
	ErrItemNotFound   = errors.New("item not found")
	ErrOptionNotFound = errors.New("option not found")
)

// Option is one labeled choice on an Item.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	// Quiz fields
	Correct bool   `json:"correct,omitempty"`
	Why     string `json:"why,omitempty"`

	// Adventure fields
	Next        string   `json:"next,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ScoreChange int      `json:"score_change,omitempty"`
}

// Item is a single question or scene. Immutable once loaded.
type Item struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// IsTerminal reports whether the item has no outgoing choices.
func (i *Item) IsTerminal() bool {
	return len(i.Options) == 0
}

// Option returns the option with the given ID, or ErrOptionNotFound.
func (i *Item) Option(id string) (*Option, error) {
	for idx := range i.Options {
		if i.Options[idx].ID == id {
			return &i.Options[idx], nil
		}
	}
	return nil, fmt.Errorf("item %q: %w: %q", i.ID, ErrOptionNotFound, id)
}

// Catalog is an immutable collection of items loaded from a scenario
// file. It is safe for unsynchronized concurrent reads.
type Catalog struct {
	name  string
	mode  Mode
	root  string
	items map[string]*Item
	order []string
}

// Name returns the catalog's display name.
func (c *Catalog) Name() string { return c.name }

// Mode returns the traversal mode of the catalog.
func (c *Catalog) Mode() Mode { return c.mode }

// Root returns the entry item ID for adventure catalogs. For quiz
// catalogs it is the first item in file order.
func (c *Catalog) Root() string { return c.root }

// Len returns the number of items in the catalog.
func (c *Catalog) Len() int { return len(c.items) }

// Get returns the item with the given ID, or ErrItemNotFound.
func (c *Catalog) Get(id string) (*Item, error) {
	item, ok := c.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrItemNotFound, id)
	}
	return item, nil
}

// ItemIDs returns all item IDs in file order. The returned slice is a
// copy and may be shuffled or reordered freely by the caller.
func (c *Catalog) ItemIDs() []string {
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}
