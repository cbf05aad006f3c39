package game

import (
	"math/rand"

	"github.com/microcom/cyberquest/pkg/catalog"
)

// nextQuizItem returns the next item ID in the session's rotation.
// Every item is shown once before any repeats; when the rotation is
// exhausted it is reshuffled, avoiding a back-to-back repeat across the
// boundary. Adventure catalogs never call this: their successor is the
// edge declared on the chosen option.
func nextQuizItem(s *Session, c *catalog.Catalog) string {
	if len(s.Rotation) == 0 || s.Cursor >= len(s.Rotation) {
		var last string
		if n := len(s.Rotation); n > 0 {
			last = s.Rotation[n-1]
		}
		s.Rotation = shuffledItemIDs(c, s.Seed+int64(s.Step))
		s.Cursor = 0
		if len(s.Rotation) > 1 && s.Rotation[0] == last {
			// Keep the reshuffled deck from opening with the item the
			// player just saw.
			s.Rotation[0], s.Rotation[len(s.Rotation)-1] = s.Rotation[len(s.Rotation)-1], s.Rotation[0]
		}
	}

	id := s.Rotation[s.Cursor]
	s.Cursor++
	return id
}

func shuffledItemIDs(c *catalog.Catalog, seed int64) []string {
	ids := c.ItemIDs()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}
