package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/microcom/cyberquest/pkg/catalog"
)

// validate runs the same structural checks as API startup against a
// scenario file, so catalog edits can be vetted before deploy.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <scenario.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	fmt.Printf("Validating %s...\n", filename)

	if err := validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Scenario file is valid!")
}

var filenamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validateFile(filename string) error {
	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("scenario file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !filenamePattern.MatchString(nameWithoutExt) {
		return fmt.Errorf("scenario filename '%s' must be lowercase snake_case (e.g., my_scenario.json, not my-scenario.json or MyScenario.json)", baseName)
	}

	cat, err := catalog.Load(filename)
	if err != nil {
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			return fmt.Errorf("%d problem(s):\n%s", len(loadErr.Problems), strings.Join(loadErr.Problems, "\n"))
		}
		return err
	}

	fmt.Printf("  name:  %s\n", cat.Name())
	fmt.Printf("  mode:  %s\n", cat.Mode())
	fmt.Printf("  items: %d\n", cat.Len())
	if cat.Mode() == catalog.ModeAdventure {
		fmt.Printf("  root:  %s\n", cat.Root())
		fmt.Printf("  endings: %d\n", countEndings(cat))
	}
	return nil
}

func countEndings(cat *catalog.Catalog) int {
	endings := 0
	for _, id := range cat.ItemIDs() {
		if item, err := cat.Get(id); err == nil && item.IsTerminal() {
			endings++
		}
	}
	return endings
}
