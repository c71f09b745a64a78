package inmemdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/connorferster/python-course-admin/core"
	"github.com/connorferster/python-course-admin/core/review"
)

type (
	DB struct {
		rounds *roundTable
	}

	roundTable struct {
		table map[string]review.Round // {title: round}
		mutex sync.RWMutex
	}

	roundRepository struct {
		db *roundTable
	}
)

func Open() *DB {
	return &DB{
		rounds: &roundTable{table: make(map[string]review.Round)},
	}
}

var _ review.Repository = (*roundRepository)(nil)

func NewRoundRepository(db *DB) review.Repository {
	return &roundRepository{db: db.rounds}
}

func (repo *roundRepository) SaveRound(_ context.Context, round review.Round) error {
	round.Title = core.CleanString(round.Title)
	if round.Title == "" {
		return errors.Wrap(core.ErrInvalidConfiguration, "empty round title")
	}
	round.Partition = append(review.Partition{}, round.Partition...)

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[round.Title] = round
	return nil
}

func (repo *roundRepository) GetRound(_ context.Context, title string) (review.Round, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	round, ok := repo.db.table[core.CleanString(title)]
	if !ok {
		return review.Round{}, errors.Wrapf(core.ErrRoundNotFound, "%q", title)
	}
	round.Partition = append(review.Partition{}, round.Partition...)
	return round, nil
}
