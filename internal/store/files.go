package store

import (
	"context"

	"github.com/m3rciful/labbot/internal/model"
)

// GetLabFile loads one file row by id.
func (s *Store) GetLabFile(ctx context.Context, id int64) (model.LabFile, error) {
	var f model.LabFile
	err := s.db.GetContext(ctx, &f, `SELECT `+fileColumns+` FROM lab_files WHERE id = $1`, id)
	return f, wrap("store.file.get", err)
}

// ListLabFiles returns the files attached to a lab in upload order.
func (s *Store) ListLabFiles(ctx context.Context, labID int64) ([]model.LabFile, error) {
	var files []model.LabFile
	err := s.db.SelectContext(ctx, &files,
		`SELECT `+fileColumns+` FROM lab_files WHERE lab_id = $1 ORDER BY id`, labID)
	return files, wrap("store.file.list", err)
}
