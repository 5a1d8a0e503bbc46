package store

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	coredatabase "github.com/m3rciful/labbot/core/database"
	"github.com/m3rciful/labbot/core/telegram/format"
	"github.com/m3rciful/labbot/internal/apperr"
	"github.com/m3rciful/labbot/internal/model"
	"github.com/m3rciful/labbot/migrations"
)

// setupStore starts PostgreSQL in a container, applies the migrations and returns a Store.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("integration test skipped: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("labbot_test"),
		postgres.WithUsername("labbot"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	cfg := coredatabase.Config{
		Host:     host,
		Port:     port.Port(),
		User:     "labbot",
		Password: "test-password",
		Name:     "labbot_test",
	}
	cfg.Normalize()
	cfg.MigrateAttempts = 3
	cfg.MigrateBackoff = time.Second

	if err := coredatabase.RunMigrations(ctx, cfg, migrations.FS); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	db, err := coredatabase.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := coredatabase.VerifySchema(ctx, db, migrations.Tables...); err != nil {
		t.Fatalf("verify schema: %v", err)
	}
	return New(db)
}

func countRows(t *testing.T, db *sqlx.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.Get(&n, query, args...); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func TestUpsertUserKeepsOneRow(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first, err := s.UpsertUser(ctx, 1001, false)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := s.UpsertUser(ctx, 1001, true)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %d vs %d", first.ID, second.ID)
	}
	if !second.IsAdmin {
		t.Fatal("admin flag not refreshed on second contact")
	}
	if n := countRows(t, s.db, `SELECT count(*) FROM users WHERE tg_id = $1`, 1001); n != 1 {
		t.Fatalf("users rows = %d, want 1", n)
	}

	if _, err := s.GetUserByTelegramID(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user err = %v, want ErrNotFound", err)
	}
}

func TestSyncAdminFlags(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		if _, err := s.UpsertUser(ctx, id, id == 1); err != nil {
			t.Fatalf("upsert %d: %v", id, err)
		}
	}
	changed, err := s.SyncAdminFlags(ctx, 3)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, u := range users {
		if u.IsAdmin != (u.TgID == 3) {
			t.Fatalf("user %d is_admin = %v", u.TgID, u.IsAdmin)
		}
	}
}

func TestSubjectConflictAndRename(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	subj, err := s.CreateSubject(ctx, "Сети")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateSubject(ctx, "Сети"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate err = %v, want ErrConflict", err)
	}
	if err := s.RenameSubject(ctx, subj.ID, "Компьютерные сети"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := s.GetSubject(ctx, subj.ID)
	if err != nil || got.Name != "Компьютерные сети" {
		t.Fatalf("GetSubject = %+v, %v", got, err)
	}
	if err := s.RenameSubject(ctx, subj.ID+100, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename missing err = %v", err)
	}
}

func TestDeleteSubjectCascades(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	subj, err := s.CreateSubject(ctx, "ОС")
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	other, err := s.CreateSubject(ctx, "БД")
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	const labs = 3
	for i := 0; i < labs; i++ {
		_, _, err := s.CreateLab(ctx, model.Lab{SubjectID: subj.ID, Title: "Лаба " + strconv.Itoa(i)},
			[]model.LabFile{{FileName: "task.pdf", FilePath: "/tmp/" + strconv.Itoa(i) + ".pdf", FileSize: 10}})
		if err != nil {
			t.Fatalf("create lab %d: %v", i, err)
		}
	}
	if _, _, err := s.CreateLab(ctx, model.Lab{SubjectID: other.ID, Title: "Чужая"}, nil); err != nil {
		t.Fatalf("create other lab: %v", err)
	}

	deleted, files, err := s.DeleteSubject(ctx, subj.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Name != "ОС" || len(files) != labs {
		t.Fatalf("deleted = %+v, files = %d", deleted, len(files))
	}
	if n := countRows(t, s.db, `SELECT count(*) FROM labs WHERE subject_id = $1`, subj.ID); n != 0 {
		t.Fatalf("labs left = %d", n)
	}
	if n := countRows(t, s.db, `SELECT count(*) FROM lab_files`); n != 0 {
		t.Fatalf("lab_files left = %d", n)
	}
	if rest, _ := s.ListLabsBySubject(ctx, other.ID); len(rest) != 1 {
		t.Fatalf("other subject labs = %d, want 1", len(rest))
	}
	if _, _, err := s.DeleteSubject(ctx, subj.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestCreateLabRollsBack(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, _, err := s.CreateLab(ctx, model.Lab{SubjectID: 999, Title: "Без предмета"}, nil)
	if !apperr.IsKind(err, apperr.KindStore) {
		t.Fatalf("err = %v, want store kind", err)
	}
	if n := countRows(t, s.db, `SELECT count(*) FROM labs`); n != 0 {
		t.Fatalf("labs = %d after failed insert", n)
	}

	// the lab row goes in, then the second file row fails: PostgreSQL text rejects NUL bytes
	subj, err := s.CreateSubject(ctx, "Сети")
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	_, _, err = s.CreateLab(ctx, model.Lab{SubjectID: subj.ID, Title: "Дампы"}, []model.LabFile{
		{FileName: "ok.pcap", FilePath: "/x/ok.pcap", FileSize: 3},
		{FileName: "bad\x00name.pcap", FilePath: "/x/bad.pcap", FileSize: 3},
	})
	if !apperr.IsKind(err, apperr.KindStore) {
		t.Fatalf("err = %v, want store kind", err)
	}
	if n := countRows(t, s.db, `SELECT count(*) FROM labs`); n != 0 {
		t.Fatalf("labs = %d after failed file insert", n)
	}
	if n := countRows(t, s.db, `SELECT count(*) FROM lab_files`); n != 0 {
		t.Fatalf("lab_files = %d after failed file insert", n)
	}
}

func TestSchemaCascadesOnDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	subj, _ := s.CreateSubject(ctx, "Физика")
	if _, _, err := s.CreateLab(ctx, model.Lab{SubjectID: subj.ID, Title: "Маятник"},
		[]model.LabFile{{FileName: "a.txt", FilePath: "/x/a.txt", FileSize: 1}}); err != nil {
		t.Fatalf("create lab: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, subj.ID); err != nil {
		t.Fatalf("raw delete: %v", err)
	}
	if n := countRows(t, s.db, `SELECT count(*) FROM labs`); n != 0 {
		t.Fatalf("labs left = %d", n)
	}
	if n := countRows(t, s.db, `SELECT count(*) FROM lab_files`); n != 0 {
		t.Fatalf("lab_files left = %d", n)
	}
}

func TestLabLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	subj, _ := s.CreateSubject(ctx, "Алгоритмы")
	lab, files, err := s.CreateLab(ctx,
		model.Lab{SubjectID: subj.ID, Title: "Сортировки", Deadline: format.StringPtr("01.12.2026")},
		[]model.LabFile{{FileName: "a.py", FilePath: "/x/a.py", FileSize: 5}, {FileName: "b.txt", FilePath: "/x/b.txt", FileSize: 7}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(files) != 2 || files[0].LabID != lab.ID || files[0].UploadedAt.IsZero() {
		t.Fatalf("files = %+v", files)
	}
	if lab.Desc != nil {
		t.Fatalf("desc = %v, want nil", *lab.Desc)
	}

	lab.Desc = format.StringPtr("Реализовать quicksort")
	if err := s.UpdateLab(ctx, lab); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetLab(ctx, lab.ID)
	if err != nil || format.DerefString(got.Desc, "") != "Реализовать quicksort" {
		t.Fatalf("GetLab = %+v, %v", got, err)
	}

	listed, err := s.ListLabFiles(ctx, lab.ID)
	if err != nil || len(listed) != 2 {
		t.Fatalf("ListLabFiles = %d, %v", len(listed), err)
	}
	one, err := s.GetLabFile(ctx, listed[1].ID)
	if err != nil || one.FileName != "b.txt" {
		t.Fatalf("GetLabFile = %+v, %v", one, err)
	}

	overview, err := s.Overview(ctx)
	if err != nil || len(overview) != 1 || len(overview[0].Labs) != 1 {
		t.Fatalf("Overview = %+v, %v", overview, err)
	}

	_, removed, err := s.DeleteLab(ctx, lab.ID)
	if err != nil || len(removed) != 2 {
		t.Fatalf("DeleteLab files = %d, %v", len(removed), err)
	}
	if _, err := s.GetLab(ctx, lab.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetLab after delete err = %v", err)
	}
}
