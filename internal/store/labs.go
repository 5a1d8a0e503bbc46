package store

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/internal/model"
)

const (
	labColumns  = `id, subject_id, title, description, deadline`
	fileColumns = `id, lab_id, file_name, file_path, file_size, uploaded_at`
)

// CreateLab inserts the lab and its file rows atomically.
func (s *Store) CreateLab(ctx context.Context, lab model.Lab, files []model.LabFile) (model.Lab, []model.LabFile, error) {
	var (
		created model.Lab
		rows    = make([]model.LabFile, 0, len(files))
	)
	err := s.withTx(ctx, "store.lab.create", func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &created, `
			INSERT INTO labs (subject_id, title, description, deadline) VALUES ($1, $2, $3, $4)
			RETURNING `+labColumns, lab.SubjectID, lab.Title, lab.Desc, lab.Deadline); err != nil {
			return err
		}
		for _, f := range files {
			var row model.LabFile
			if err := tx.GetContext(ctx, &row, `
				INSERT INTO lab_files (lab_id, file_name, file_path, file_size) VALUES ($1, $2, $3, $4)
				RETURNING `+fileColumns, created.ID, f.FileName, f.FilePath, f.FileSize); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return model.Lab{}, nil, err
	}
	logger.Info(ctx, logger.CompStore, "store.lab.create",
		slog.Int64("lab_id", created.ID),
		slog.Int64("subject_id", created.SubjectID),
		slog.Int("files", len(rows)),
	)
	return created, rows, nil
}

// GetLab loads one lab by id.
func (s *Store) GetLab(ctx context.Context, id int64) (model.Lab, error) {
	var lab model.Lab
	err := s.db.GetContext(ctx, &lab, `SELECT `+labColumns+` FROM labs WHERE id = $1`, id)
	return lab, wrap("store.lab.get", err)
}

// ListLabs returns all labs in creation order.
func (s *Store) ListLabs(ctx context.Context) ([]model.Lab, error) {
	var labs []model.Lab
	err := s.db.SelectContext(ctx, &labs, `SELECT `+labColumns+` FROM labs ORDER BY id`)
	return labs, wrap("store.lab.list", err)
}

// ListLabsBySubject returns the labs of one subject.
func (s *Store) ListLabsBySubject(ctx context.Context, subjectID int64) ([]model.Lab, error) {
	var labs []model.Lab
	err := s.db.SelectContext(ctx, &labs,
		`SELECT `+labColumns+` FROM labs WHERE subject_id = $1 ORDER BY id`, subjectID)
	return labs, wrap("store.lab.list_by_subject", err)
}

// UpdateLab overwrites title, description and deadline.
func (s *Store) UpdateLab(ctx context.Context, lab model.Lab) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE labs SET title = $1, description = $2, deadline = $3 WHERE id = $4`,
		lab.Title, lab.Desc, lab.Deadline, lab.ID)
	if err != nil {
		return wrap("store.lab.update", err)
	}
	return wrap("store.lab.update", affectedOne(res))
}

// DeleteLab removes the lab and its file rows, returning both.
func (s *Store) DeleteLab(ctx context.Context, id int64) (model.Lab, []model.LabFile, error) {
	var (
		lab   model.Lab
		files []model.LabFile
	)
	err := s.withTx(ctx, "store.lab.delete", func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &lab, `SELECT `+labColumns+` FROM labs WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &files,
			`DELETE FROM lab_files WHERE lab_id = $1 RETURNING `+fileColumns, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM labs WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return model.Lab{}, nil, err
	}
	logger.Info(ctx, logger.CompStore, "store.lab.delete",
		slog.Int64("lab_id", id),
		slog.Int("files", len(files)),
	)
	return lab, files, nil
}

// Overview returns every subject with its labs, in creation order.
func (s *Store) Overview(ctx context.Context) ([]model.SubjectLabs, error) {
	subjects, err := s.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	labs, err := s.ListLabs(ctx)
	if err != nil {
		return nil, err
	}
	bySubject := make(map[int64][]model.Lab, len(subjects))
	for _, l := range labs {
		bySubject[l.SubjectID] = append(bySubject[l.SubjectID], l)
	}
	out := make([]model.SubjectLabs, 0, len(subjects))
	for _, subj := range subjects {
		out = append(out, model.SubjectLabs{Subject: subj, Labs: bySubject[subj.ID]})
	}
	return out, nil
}
