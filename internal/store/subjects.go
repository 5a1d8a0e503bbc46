package store

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/internal/model"
)

// CreateSubject inserts a subject; a duplicate name yields ErrConflict.
func (s *Store) CreateSubject(ctx context.Context, name string) (model.Subject, error) {
	var subj model.Subject
	err := s.db.GetContext(ctx, &subj,
		`INSERT INTO subjects (name) VALUES ($1) RETURNING id, name`, name)
	return subj, wrap("store.subject.create", err)
}

// GetSubject loads one subject by id.
func (s *Store) GetSubject(ctx context.Context, id int64) (model.Subject, error) {
	var subj model.Subject
	err := s.db.GetContext(ctx, &subj, `SELECT id, name FROM subjects WHERE id = $1`, id)
	return subj, wrap("store.subject.get", err)
}

// ListSubjects returns all subjects in creation order.
func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	var subjects []model.Subject
	err := s.db.SelectContext(ctx, &subjects, `SELECT id, name FROM subjects ORDER BY id`)
	return subjects, wrap("store.subject.list", err)
}

// RenameSubject changes the subject name.
func (s *Store) RenameSubject(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subjects SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return wrap("store.subject.rename", err)
	}
	return wrap("store.subject.rename", affectedOne(res))
}

// DeleteSubject removes the subject with all its labs and their file rows in one transaction.
// The removed file rows are returned so the caller can decide what to do with the disk copies.
func (s *Store) DeleteSubject(ctx context.Context, id int64) (model.Subject, []model.LabFile, error) {
	var (
		subj  model.Subject
		files []model.LabFile
	)
	err := s.withTx(ctx, "store.subject.delete", func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &subj, `SELECT id, name FROM subjects WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &files, `
			DELETE FROM lab_files WHERE lab_id IN (SELECT id FROM labs WHERE subject_id = $1)
			RETURNING id, lab_id, file_name, file_path, file_size, uploaded_at`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM labs WHERE subject_id = $1`, id)
		if err != nil {
			return err
		}
		labs, _ := res.RowsAffected()
		if _, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id); err != nil {
			return err
		}
		logger.Info(ctx, logger.CompStore, "store.subject.delete",
			slog.Int64("subject_id", id),
			slog.Int64("labs", labs),
			slog.Int("files", len(files)),
		)
		return nil
	})
	if err != nil {
		return model.Subject{}, nil, err
	}
	return subj, files, nil
}
