package prompting

import (
	"container/list"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultChoiceCapacity is the number of distinct madlib files a
// ChoiceStore keeps cached before evicting the least recently used one.
const DefaultChoiceCapacity = 256

// ChoiceStore loads madlib choice lists from JSON array files and caches
// them by canonical absolute path for its own lifetime. A store may be
// shared across renders and goroutines; eviction only affects whether a
// later load re-reads the file, never what it returns.
type ChoiceStore struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	recency  *list.List // front is most recently used
}

type choiceEntry struct {
	path    string
	choices []string
}

// NewChoiceStore creates a store holding up to capacity cached files.
// A non-positive capacity selects DefaultChoiceCapacity.
func NewChoiceStore(capacity int) *ChoiceStore {
	if capacity <= 0 {
		capacity = DefaultChoiceCapacity
	}
	return &ChoiceStore{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		recency:  list.New(),
	}
}

// Load returns the validated choice list backing path: an ordered,
// non-empty sequence of trimmed non-blank strings. The returned slice is
// shared with the cache and must not be modified.
func (s *ChoiceStore) Load(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, wrapErrorf(err, "cannot resolve madlib path %q", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[abs]; ok {
		s.recency.MoveToFront(elem)
		return elem.Value.(*choiceEntry).choices, nil
	}

	choices, err := loadChoiceFile(abs)
	if err != nil {
		return nil, err
	}

	elem := s.recency.PushFront(&choiceEntry{path: abs, choices: choices})
	s.entries[abs] = elem
	if s.recency.Len() > s.capacity {
		oldest := s.recency.Back()
		s.recency.Remove(oldest)
		delete(s.entries, oldest.Value.(*choiceEntry).path)
	}
	return choices, nil
}

func loadChoiceFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newErrorf("madlib file not found: %s", path)
		}
		return nil, wrapErrorf(err, "cannot read madlib file %s", path)
	}

	parsed, err := decodeJSON(data)
	if err != nil {
		return nil, wrapErrorf(err, "invalid JSON in %s", path)
	}
	items, ok := parsed.(Array)
	if !ok {
		return nil, newErrorf("madlib file %s must contain a JSON array of strings", path)
	}

	choices := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(String)
		if !ok {
			return nil, newErrorf(
				"madlib file %s contains non-string entry: %v", path, ToGo(item))
		}
		if cleaned := strings.TrimSpace(string(str)); cleaned != "" {
			choices = append(choices, cleaned)
		}
	}
	if len(choices) == 0 {
		return nil, newErrorf(
			"madlib file %s does not contain any usable string entries", path)
	}
	return choices, nil
}
