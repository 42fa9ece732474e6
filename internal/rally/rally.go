// Package rally implements the rally lifecycle: creation, joining,
// capacity-fill completion and time-based expiry. Rallies exist in the
// registry only while recruiting; the step that decides a terminal outcome
// also removes them.
package rally

import (
	"errors"
	"time"
)

// Business-rule failures surfaced to the user. None of them change state.
var (
	ErrInvalidLevel     = errors.New("fortress level must be between 1 and 6")
	ErrInvalidTimeLimit = errors.New("time limit must be 5, 15, 30 or 60 minutes")
	ErrNotConfigured    = errors.New("no rally channel configured for this guild")
	ErrNotFound         = errors.New("rally no longer exists")
	ErrSelfJoin         = errors.New("creator cannot join their own rally")
	ErrAlreadyJoined    = errors.New("user has already joined this rally")
	ErrFull             = errors.New("rally is already full")
	ErrPermissionDenied = errors.New("only the rally creator or an admin can cancel")
)

// LevelInfo is one row of the fortress level table.
type LevelInfo struct {
	Capacity int
	Points   int
	Name     string
}

// levelTable maps fortress level to required participants and point reward.
var levelTable = map[int]LevelInfo{
	1: {Capacity: 1, Points: 10, Name: "Fortress Lv. 1"},
	2: {Capacity: 1, Points: 20, Name: "Fortress Lv. 2"},
	3: {Capacity: 2, Points: 30, Name: "Fortress Lv. 3"},
	4: {Capacity: 3, Points: 45, Name: "Fortress Lv. 4"},
	5: {Capacity: 4, Points: 50, Name: "Fortress Lv. 5"},
	6: {Capacity: 5, Points: 60, Name: "Fortress Lv. 6"},
}

// LookupLevel returns the level table entry for a fortress level.
func LookupLevel(level int) (LevelInfo, bool) {
	info, ok := levelTable[level]
	return info, ok
}

// TimeLimits are the durations a rally may stay open.
var TimeLimits = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
}

func validTimeLimit(d time.Duration) bool {
	for _, limit := range TimeLimits {
		if d == limit {
			return true
		}
	}
	return false
}

// Rally is one open rally. Capacity and Points are snapshotted from the
// level table at creation time. Participants never contains the creator and
// never exceeds Capacity.
type Rally struct {
	ID           string
	GuildID      string
	CreatorID    string
	Level        int
	LevelName    string
	Capacity     int
	Points       int
	Participants []string
	CreatedAt    time.Time
	ExpiresAt    time.Time

	// ChannelID and MessageID locate the public rally post.
	ChannelID string
	MessageID string
}

// snapshot returns a copy safe to hand out after the registry lock is
// released.
func (r *Rally) snapshot() Rally {
	out := *r
	out.Participants = append([]string(nil), r.Participants...)
	return out
}
