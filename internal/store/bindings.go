package store

import "sync"

// Bindings maps each guild to the single channel where rally posts go.
// Setup is an infrequent admin action, so writes are last-writer-wins.
type Bindings struct {
	mu       sync.RWMutex
	path     string
	channels map[string]string
}

// OpenBindings loads the channel bindings from disk, creating an empty store
// if the file does not exist yet.
func OpenBindings(path string) (*Bindings, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	b := &Bindings{
		path:     path,
		channels: make(map[string]string),
	}
	if err := loadJSON(path, &b.channels); err != nil {
		return nil, err
	}
	return b, nil
}

// Set binds a guild to a channel, overwriting any previous binding, and
// persists before returning.
func (b *Bindings) Set(guildID, channelID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, had := b.channels[guildID]
	b.channels[guildID] = channelID
	if err := saveJSON(b.path, b.channels); err != nil {
		if had {
			b.channels[guildID] = prev
		} else {
			delete(b.channels, guildID)
		}
		return err
	}
	return nil
}

// Channel returns the bound channel for a guild, if any.
func (b *Bindings) Channel(guildID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	channelID, ok := b.channels[guildID]
	return channelID, ok
}
