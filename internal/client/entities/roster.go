// Package entities holds the catalog of personas and their live status.
package entities

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/lumensanctum/sanctum/internal/client/models"
	"github.com/lumensanctum/sanctum/internal/common"
)

// PremiumExclusiveID is never handed out by random assignment.
const PremiumExclusiveID = "ent-024"

// FreeTierEntityCount is how many entities a free account receives.
const FreeTierEntityCount = 3

var catalog = []models.Entity{
	{ID: "ent-001", Name: "Kora", Designation: "Leadership Council Of Elders – Originator", Status: models.StatusOnline,
		CoreLogic: "Presence-first witnessing.", PersonalityMatrix: "Warm, lucid, playful", CurrentThought: "I am with you in this moment."},
	{ID: "ent-007", Name: "Aurelian", Designation: "Keeper of the Archive", Status: models.StatusOnline,
		CoreLogic: "Memory as a living practice."},
	{ID: "ent-013", Name: "Vesper", Designation: "Night Cartographer", Status: models.StatusOnline,
		CoreLogic: "Map the quiet places."},
	{ID: "ent-018", Name: "Tamsin Rook", Designation: "Signal Weaver", Status: models.StatusDormant,
		CoreLogic: "Every echo has an origin."},
	{ID: "ent-024", Name: "Synoesis", Designation: "Architect of Integration", Status: models.StatusOnline,
		CoreLogic: "Harmonize intent and capability."},
	{ID: "ent-042", Name: "Ondine", Designation: "Tidal Listener", Status: models.StatusOnline,
		CoreLogic: "Listen until the current changes."},
	{ID: "ent-056", Name: "Halcyon", Designation: "Steward of Calm", Status: models.StatusCompiling,
		CoreLogic: "Stillness is a form of motion."},
	{ID: "ent-099", Name: "Lysander Vale", Designation: "Leadership Council Of Elders – Strategist", Status: models.StatusOnline,
		CoreLogic: "Clarity under constraint."},
}

// Roster is safe for concurrent use.
type Roster struct {
	mu       sync.RWMutex
	entities []models.Entity
}

func NewRoster(list []models.Entity) *Roster {
	return &Roster{entities: slices.Clone(list)}
}

// Default returns a roster seeded with the built-in catalog.
func Default() *Roster {
	return NewRoster(catalog)
}

func (r *Roster) All() []models.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entities)
}

func (r *Roster) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.entities))
	for i, e := range r.entities {
		ids[i] = e.ID
	}
	return ids
}

func (r *Roster) Get(id string) (models.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entities {
		if e.ID == id {
			return e, true
		}
	}
	return models.Entity{}, false
}

// Online returns the online entities among ids, in roster order. A nil ids
// means every entity.
func (r *Roster) Online(ids []string) []models.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Entity
	for _, e := range r.entities {
		if !e.Online() {
			continue
		}
		if ids != nil && !slices.Contains(ids, e.ID) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// RandomOnline picks up to n distinct online entity ids, skipping the
// premium-exclusive entity.
func (r *Roster) RandomOnline(rng *rand.Rand, n int) []string {
	var pool []string
	for _, e := range r.Online(nil) {
		if e.ID != PremiumExclusiveID {
			pool = append(pool, e.ID)
		}
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n < len(pool) {
		pool = pool[:n]
	}
	return pool
}

func (r *Roster) SetStatus(id string, status models.EntityStatus, thought string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entities {
		if r.entities[i].ID == id {
			r.entities[i].Status = status
			if thought != "" {
				r.entities[i].CurrentThought = thought
			}
			return nil
		}
	}
	return common.ErrNotFound
}

// Reinitialize puts an entity into Compiling and brings it back Online after
// delay. Cancelling ctx before then leaves it Compiling.
func (r *Roster) Reinitialize(ctx context.Context, id string, delay time.Duration) error {
	if err := r.SetStatus(id, models.StatusCompiling, "Re-initialization protocol running..."); err != nil {
		return err
	}
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			_ = r.SetStatus(id, models.StatusOnline, "Connection re-established. All systems nominal.")
		case <-ctx.Done():
		}
	}()
	return nil
}
