package trades

import (
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/settlement"
	"github.com/google/uuid"
)

const (
	DefaultLifetime = 7 * 24 * time.Hour
	MaxCardsPerSide = 5
	MaxMessageRunes = 200
)

type Settings struct {
	Lifetime        time.Duration
	MaxCardsPerSide int
}

func (s Settings) withDefaults() Settings {
	if s.Lifetime <= 0 {
		s.Lifetime = DefaultLifetime
	}
	if s.MaxCardsPerSide <= 0 {
		s.MaxCardsPerSide = MaxCardsPerSide
	}
	return s
}

// Service runs the trade offer state machine:
// pending -> accepted | declined | cancelled | expired.
type Service struct {
	uow      exchange.UnitOfWork
	settler  *settlement.Core
	settings Settings
	newID    func() string
	now      func() time.Time
}

func NewService(uow exchange.UnitOfWork, settler *settlement.Core, settings Settings) *Service {
	if uow == nil {
		panic("unit of work cannot be nil")
	}
	if settler == nil {
		panic("settlement core cannot be nil")
	}
	return &Service{
		uow:      uow,
		settler:  settler,
		settings: settings.withDefaults(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
