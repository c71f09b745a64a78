// Package jsonfile stores each review round as `<dir>/<title>.json`, the file holding only the
// round's partition, e.g. `[["a@x.com","b@x.com"],["c@x.com",null]]`.
package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/connorferster/python-course-admin/core"
	"github.com/connorferster/python-course-admin/core/review"
)

const ext = ".json"

type roundRepository struct {
	dir string
}

var _ review.Repository = (*roundRepository)(nil)

func NewRoundRepository(conf *core.Config) review.Repository {
	return &roundRepository{dir: conf.Storage.Dir}
}

func (repo *roundRepository) path(title string) (string, error) {
	title = core.CleanString(title)
	if title == "" || title != filepath.Base(title) || strings.HasPrefix(title, ".") {
		return "", errors.Wrapf(core.ErrInvalidConfiguration, "invalid round title %q", title)
	}
	return filepath.Join(repo.dir, title+ext), nil
}

// SaveRound writes to a temporary file then renames it over the previous version.
func (repo *roundRepository) SaveRound(ctx context.Context, round review.Round) error {
	path, err := repo.path(round.Title)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := round.Partition.Encode()
	if err != nil {
		return core.NewPersistenceError("encode", path, err)
	}
	if err := os.MkdirAll(repo.dir, 0o755); err != nil {
		return core.NewPersistenceError("mkdir", repo.dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return core.NewPersistenceError("write", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return core.NewPersistenceError("rename", path, err)
	}
	if !round.CreatedAt.IsZero() {
		_ = os.Chtimes(path, round.CreatedAt, round.CreatedAt)
	}
	return nil
}

// GetRound loads a round; its creation time is the file's modification time.
// A missing file is a *core.PersistenceError wrapping core.ErrRoundNotFound.
func (repo *roundRepository) GetRound(ctx context.Context, title string) (review.Round, error) {
	path, err := repo.path(title)
	if err != nil {
		return review.Round{}, err
	}
	if err := ctx.Err(); err != nil {
		return review.Round{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return review.Round{}, core.NewPersistenceError("read", path, core.ErrRoundNotFound)
		}
		return review.Round{}, core.NewPersistenceError("read", path, err)
	}
	partition, err := review.DecodePartition(data)
	if err != nil {
		return review.Round{}, core.NewPersistenceError("decode", path, err)
	}

	round := review.Round{Title: core.CleanString(title), Partition: partition}
	if info, err := os.Stat(path); err == nil {
		round.CreatedAt = info.ModTime().UTC()
	}
	return round, nil
}
