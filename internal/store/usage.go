package store

import (
	"sort"
	"sync"
)

// Usage counts command invocations. The counters are cosmetic, so callers
// treat a failed persist as log-worthy rather than fatal.
type Usage struct {
	mu     sync.Mutex
	path   string
	counts map[string]int
}

// OpenUsage loads the usage counters from disk.
func OpenUsage(path string) (*Usage, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	u := &Usage{
		path:   path,
		counts: make(map[string]int),
	}
	if err := loadJSON(path, &u.counts); err != nil {
		return nil, err
	}
	return u, nil
}

// Increment counts one invocation of a command and persists.
func (u *Usage) Increment(command string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.counts[command]++
	if err := saveJSON(u.path, u.counts); err != nil {
		u.counts[command]--
		return err
	}
	return nil
}

// CommandCount is one row of usage output.
type CommandCount struct {
	Command string
	Count   int
}

// Counts returns all counters, most-used first.
func (u *Usage) Counts() []CommandCount {
	u.mu.Lock()
	defer u.mu.Unlock()

	counts := make([]CommandCount, 0, len(u.counts))
	for command, count := range u.counts {
		counts = append(counts, CommandCount{Command: command, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Command < counts[j].Command
	})
	return counts
}
