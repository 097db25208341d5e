package market

import (
	"time"

	"github.com/cardforge/cardforge/internal/domain/exchange"
	"github.com/cardforge/cardforge/internal/domain/settlement"
	"github.com/google/uuid"
)

const (
	DefaultDuration        = 24 * time.Hour
	MinDuration            = time.Hour
	MaxDuration            = 7 * 24 * time.Hour
	DefaultMinBidIncrement = 10
)

type Settings struct {
	DefaultDuration        time.Duration
	MinDuration            time.Duration
	MaxDuration            time.Duration
	DefaultMinBidIncrement uint64
}

func (s Settings) withDefaults() Settings {
	if s.DefaultDuration <= 0 {
		s.DefaultDuration = DefaultDuration
	}
	if s.MinDuration <= 0 {
		s.MinDuration = MinDuration
	}
	if s.MaxDuration <= 0 {
		s.MaxDuration = MaxDuration
	}
	if s.DefaultMinBidIncrement == 0 {
		s.DefaultMinBidIncrement = DefaultMinBidIncrement
	}
	return s
}

// Service owns listings and arbitrates bids on them.
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

// SetClock replaces the time source. Used by tests and the sweep command.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
