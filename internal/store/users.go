package store

import (
	"context"

	"github.com/m3rciful/labbot/internal/model"
)

// UpsertUser registers tgID or refreshes its admin flag; a repeated contact never adds a row.
func (s *Store) UpsertUser(ctx context.Context, tgID int64, isAdmin bool) (model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `
		INSERT INTO users (tg_id, is_admin) VALUES ($1, $2)
		ON CONFLICT (tg_id) DO UPDATE SET is_admin = EXCLUDED.is_admin
		RETURNING id, tg_id, is_admin`, tgID, isAdmin)
	return u, wrap("store.user.upsert", err)
}

// GetUserByTelegramID returns ErrNotFound for users who never sent /start.
func (s *Store) GetUserByTelegramID(ctx context.Context, tgID int64) (model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT id, tg_id, is_admin FROM users WHERE tg_id = $1`, tgID)
	return u, wrap("store.user.get", err)
}

// ListUsers returns every known user in registration order.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.SelectContext(ctx, &users, `SELECT id, tg_id, is_admin FROM users ORDER BY id`)
	return users, wrap("store.user.list", err)
}

// SyncAdminFlags sets is_admin = (tg_id = adminID) for all users and returns the number changed.
func (s *Store) SyncAdminFlags(ctx context.Context, adminID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_admin = (tg_id = $1)
		WHERE is_admin IS DISTINCT FROM (tg_id = $1)`, adminID)
	if err != nil {
		return 0, wrap("store.user.sync_admin", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("store.user.sync_admin", err)
}
