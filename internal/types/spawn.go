package types

import "time"

// WildWinner is the user who caught a wild spawn
type WildWinner struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"username"`
	CaughtAt    time.Time `json:"caught_time"`
}

// WildAttempt is one user's single try against a spawn
type WildAttempt struct {
	DisplayName string    `json:"username"`
	AttemptedAt time.Time `json:"attempt_time"`
	Success     bool      `json:"success"`
}

// WildSpawn is one spawn instance. Attempts are scoped to it.
type WildSpawn struct {
	ID        string                 `json:"id"`
	Species   Species                `json:"pokemon"`
	SpawnedAt time.Time              `json:"spawn_time"`
	Channel   Destination            `json:"channel"`
	Winner    *WildWinner            `json:"caught_by,omitempty"`
	Attempts  map[string]WildAttempt `json:"attempted_catches"`
}

// Resolved reports whether the spawn already has a winner
func (w *WildSpawn) Resolved() bool {
	return w.Winner != nil
}

// Clone deep-copies the spawn record
func (w *WildSpawn) Clone() *WildSpawn {
	cp := *w
	cp.Species = w.Species.Snapshot()
	if w.Winner != nil {
		winner := *w.Winner
		cp.Winner = &winner
	}
	cp.Attempts = make(map[string]WildAttempt, len(w.Attempts))
	for k, v := range w.Attempts {
		cp.Attempts[k] = v
	}
	return &cp
}

// WildSpawnState is the persisted singleton for a broadcast channel
type WildSpawnState struct {
	Current      *WildSpawn `json:"current_wild,omitempty"`
	LastSpawnAt  time.Time  `json:"last_spawn"`
	SpawnChannel string     `json:"spawn_channel"`
}

// Clone deep-copies the state
func (s *WildSpawnState) Clone() *WildSpawnState {
	cp := *s
	if s.Current != nil {
		cp.Current = s.Current.Clone()
	}
	return &cp
}

// Destination is a resolved broadcast target
type Destination struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
