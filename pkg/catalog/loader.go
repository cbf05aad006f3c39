package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadError aggregates every problem found while loading a scenario
// file. It is fatal at startup; a service should refuse to serve
// traffic with a broken catalog.
type LoadError struct {
	Source   string
	Problems []string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("invalid scenario source %s:\n%s", e.Source, strings.Join(e.Problems, "\n"))
}

// scenarioFile is the on-disk schema for a catalog.
type scenarioFile struct {
	Name  string `json:"name"`
	Mode  Mode   `json:"mode"`
	Root  string `json:"root,omitempty"`
	Items []Item `json:"items"`
}

// Load reads and validates a scenario file. All structural problems are
// collected into a single LoadError rather than surfacing one at a
// time.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(path, data)
}

// Parse validates raw scenario JSON. The source name is used only for
// error reporting.
func Parse(source string, data []byte) (*Catalog, error) {
	var sf scenarioFile
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&sf); err != nil {
		return nil, &LoadError{Source: source, Problems: []string{err.Error()}}
	}

	var problems []string
	addProblem := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if sf.Mode != ModeQuiz && sf.Mode != ModeAdventure {
		addProblem("mode must be %q or %q, got %q", ModeQuiz, ModeAdventure, sf.Mode)
	}
	if len(sf.Items) == 0 {
		addProblem("scenario has no items")
	}

	items := make(map[string]*Item, len(sf.Items))
	order := make([]string, 0, len(sf.Items))
	for idx := range sf.Items {
		item := &sf.Items[idx]
		if item.ID == "" {
			addProblem("item at index %d has no id", idx)
			continue
		}
		if _, dup := items[item.ID]; dup {
			addProblem("duplicate item id %q", item.ID)
			continue
		}
		if item.Prompt == "" {
			addProblem("item %q has no prompt", item.ID)
		}
		items[item.ID] = item
		order = append(order, item.ID)
	}

	for _, id := range order {
		validateItem(items[id], sf.Mode, items, addProblem)
	}

	root := sf.Root
	if root == "" && len(order) > 0 {
		root = order[0]
	}
	if root != "" {
		if _, ok := items[root]; !ok {
			addProblem("root item %q does not exist", root)
		}
	}

	if len(problems) > 0 {
		return nil, &LoadError{Source: source, Problems: problems}
	}

	return &Catalog{
		name:  sf.Name,
		mode:  sf.Mode,
		root:  root,
		items: items,
		order: order,
	}, nil
}

func validateItem(item *Item, mode Mode, items map[string]*Item, addProblem func(string, ...any)) {
	seen := make(map[string]bool, len(item.Options))
	anyCorrect := false
	for _, opt := range item.Options {
		if opt.ID == "" {
			addProblem("item %q has an option with no id", item.ID)
			continue
		}
		if seen[opt.ID] {
			addProblem("item %q has duplicate option id %q", item.ID, opt.ID)
		}
		seen[opt.ID] = true
		if opt.Text == "" {
			addProblem("item %q option %q has no text", item.ID, opt.ID)
		}

		switch mode {
		case ModeQuiz:
			if opt.Next != "" {
				addProblem("item %q option %q declares a next item in quiz mode", item.ID, opt.ID)
			}
			if opt.Correct {
				anyCorrect = true
			}
		case ModeAdventure:
			if opt.Next == "" {
				addProblem("item %q option %q has no next item", item.ID, opt.ID)
			} else if _, ok := items[opt.Next]; !ok {
				addProblem("item %q option %q points to missing item %q", item.ID, opt.ID, opt.Next)
			}
		}
	}

	if mode == ModeQuiz {
		if len(item.Options) == 0 {
			addProblem("item %q has no options", item.ID)
		} else if !anyCorrect {
			addProblem("item %q has no correct option", item.ID)
		}
	}
}
