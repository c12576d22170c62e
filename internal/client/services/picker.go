package services

import (
	"math/rand/v2"
	"sync"

	"github.com/lumensanctum/sanctum/internal/client/entities"
)

// EntityPicker draws the random free-tier entity set. *rand.Rand is not safe
// for concurrent use, hence the mutex.
type EntityPicker struct {
	mu     sync.Mutex
	rng    *rand.Rand
	roster *entities.Roster
}

func NewEntityPicker(roster *entities.Roster, rng *rand.Rand) *EntityPicker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &EntityPicker{rng: rng, roster: roster}
}

func (p *EntityPicker) pick() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roster.RandomOnline(p.rng, entities.FreeTierEntityCount)
}
