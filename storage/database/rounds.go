package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/connorferster/python-course-admin/core"
	"github.com/connorferster/python-course-admin/core/review"
)

type (
	roundRow struct {
		ID        string    `db:"id"`
		Title     string    `db:"title"`
		CreatedAt time.Time `db:"created_at"`
	}

	pairingRow struct {
		Position int            `db:"position"`
		MemberA  string         `db:"member_a"`
		MemberB  sql.NullString `db:"member_b"`
	}

	roundRepository struct {
		db *sqlx.DB
	}
)

var _ review.Repository = (*roundRepository)(nil)

func NewRoundRepository(db *sqlx.DB) review.Repository {
	return &roundRepository{db: db}
}

// SaveRound replaces any round with the same title, in a single transaction.
func (repo *roundRepository) SaveRound(ctx context.Context, round review.Round) (err error) {
	title := core.CleanString(round.Title)
	if title == "" {
		return errors.Wrap(core.ErrInvalidConfiguration, "empty round title")
	}
	createdAt := round.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewPersistenceError("begin", title, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var oldID string
	err = tx.GetContext(ctx, &oldID, tx.Rebind(`SELECT id FROM rounds WHERE title = ?`), title)
	switch {
	case err == nil:
		if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM pairings WHERE round_id = ?`), oldID); err != nil {
			return core.NewPersistenceError("delete pairings", title, err)
		}
		if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM rounds WHERE id = ?`), oldID); err != nil {
			return core.NewPersistenceError("delete round", title, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	default:
		return core.NewPersistenceError("select round", title, err)
	}

	row := roundRow{ID: uuid.NewString(), Title: title, CreatedAt: createdAt.UTC()}
	if _, err = tx.NamedExecContext(ctx,
		`INSERT INTO rounds (id, title, created_at) VALUES (:id, :title, :created_at)`, row,
	); err != nil {
		return core.NewPersistenceError("insert round", title, err)
	}

	insertPairing := tx.Rebind(`INSERT INTO pairings (round_id, position, member_a, member_b) VALUES (?, ?, ?, ?)`)
	for pos, pairing := range round.Partition {
		memberB := sql.NullString{String: pairing.B, Valid: pairing.B != ""}
		if _, err = tx.ExecContext(ctx, insertPairing, row.ID, pos, pairing.A, memberB); err != nil {
			return core.NewPersistenceError("insert pairing", title, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return core.NewPersistenceError("commit", title, err)
	}
	return nil
}

func (repo *roundRepository) GetRound(ctx context.Context, title string) (review.Round, error) {
	title = core.CleanString(title)

	var row roundRow
	err := repo.db.GetContext(ctx, &row,
		repo.db.Rebind(`SELECT id, title, created_at FROM rounds WHERE title = ?`), title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return review.Round{}, errors.Wrapf(core.ErrRoundNotFound, "%q", title)
		}
		return review.Round{}, core.NewPersistenceError("select round", title, err)
	}

	var rows []pairingRow
	err = repo.db.SelectContext(ctx, &rows,
		repo.db.Rebind(`SELECT position, member_a, member_b FROM pairings WHERE round_id = ? ORDER BY position`), row.ID)
	if err != nil {
		return review.Round{}, core.NewPersistenceError("select pairings", title, err)
	}

	partition := make(review.Partition, 0, len(rows))
	for _, r := range rows {
		partition = append(partition, review.Pairing{A: r.MemberA, B: r.MemberB.String})
	}
	return review.Round{Title: row.Title, Partition: partition, CreatedAt: row.CreatedAt.UTC()}, nil
}
