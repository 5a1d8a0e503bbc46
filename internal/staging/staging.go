// Package staging writes uploaded attachments to the upload directory before they are recorded.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/metrics"
	"github.com/m3rciful/labbot/internal/apperr"
)

// allowed lists the upload extensions accepted for lab files.
var allowed = []string{".txt", ".pdf", ".docx", ".xlsx", ".xls", ".zip", ".py", ".pcap", ".tar", ".jpg", ".jpeg", ".png"}

// FileRef points at an attachment still held by the messaging platform.
type FileRef struct {
	FileID string
	Name   string
	Size   int64
}

// Source resolves a platform file id to its content.
type Source interface {
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Staged describes a file written to local disk.
type Staged struct {
	GeneratedName string
	Path          string
	OriginalName  string
	Size          int64
}

// Service stages files under a single root directory.
type Service struct {
	dir string
}

// New prepares dir (creating it when missing) and returns a Service rooted there.
func New(dir string) (*Service, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("staging: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create %s: %w", abs, err)
	}
	return &Service{dir: abs}, nil
}

// Dir returns the absolute upload root.
func (s *Service) Dir() string { return s.dir }

// Ext returns the lower-cased extension of name including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Accepts reports whether name carries an allowed extension.
func Accepts(name string) bool {
	ext := Ext(name)
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// Stage downloads ref from src into a randomly named file keeping the original extension.
// The result is returned only when a non-empty file is present on disk afterwards.
func (s *Service) Stage(ctx context.Context, src Source, ref FileRef) (Staged, error) {
	if !Accepts(ref.Name) {
		metrics.StagedFiles.WithLabelValues("rejected").Inc()
		return Staged{}, apperr.New(apperr.KindUnsupportedFormat, "staging.stage", fmt.Errorf("extension %q", Ext(ref.Name)))
	}

	staged, err := s.stage(ctx, src, ref)
	if err != nil {
		metrics.StagedFiles.WithLabelValues("fail").Inc()
		logger.Warn(ctx, logger.CompStaging, "staging.file.fail",
			slog.String("file_name", logger.SanitizeLimit(ref.Name, 128)),
			logger.Err(err),
		)
		return Staged{}, apperr.New(apperr.KindStaging, "staging.stage", err)
	}

	metrics.StagedFiles.WithLabelValues("ok").Inc()
	metrics.StagedBytes.Add(float64(staged.Size))
	logger.Info(ctx, logger.CompStaging, "staging.file.staged",
		slog.String("file_name", logger.SanitizeLimit(ref.Name, 128)),
		slog.String("stored_as", staged.GeneratedName),
		slog.Int64("size", staged.Size),
	)
	return staged, nil
}

func (s *Service) stage(ctx context.Context, src Source, ref FileRef) (Staged, error) {
	body, err := src.Fetch(ctx, ref.FileID)
	if err != nil {
		return Staged{}, fmt.Errorf("fetch: %w", err)
	}
	defer body.Close()

	name := uuid.NewString() + filepath.Ext(ref.Name)
	final := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Staged{}, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return Staged{}, fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Staged{}, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Staged{}, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return Staged{}, fmt.Errorf("rename: %w", err)
	}
	committed = true

	info, err := os.Stat(final)
	if err != nil {
		return Staged{}, fmt.Errorf("verify: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(final)
		return Staged{}, errors.New("verify: staged file is empty")
	}
	return Staged{
		GeneratedName: name,
		Path:          final,
		OriginalName:  ref.Name,
		Size:          info.Size(),
	}, nil
}

// Resolve checks that a stored path still exists before it is streamed back.
func (s *Service) Resolve(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil {
			err = errors.New("is a directory")
		}
		return "", apperr.New(apperr.KindFileMissing, "staging.resolve", err)
	}
	return path, nil
}

// Discard removes staged files; missing files are not an error.
func (s *Service) Discard(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn(ctx, logger.CompStaging, "staging.file.discard_fail",
				slog.String("path", p),
				logger.Err(err),
			)
			continue
		}
		logger.Debug(ctx, logger.CompStaging, "staging.file.discarded", slog.String("path", p))
	}
}

// Delivery is how a stored file is sent back to a user.
type Delivery int

const (
	DeliverDocument Delivery = iota
	DeliverPhoto
	DeliverVideo
)

var deliveryByExt = map[string]Delivery{
	".jpg": DeliverPhoto, ".jpeg": DeliverPhoto, ".png": DeliverPhoto, ".gif": DeliverPhoto,
	".mp4": DeliverVideo, ".avi": DeliverVideo, ".mov": DeliverVideo, ".mkv": DeliverVideo,
}

// DeliveryKind picks photo, video or document by file name suffix.
func DeliveryKind(name string) Delivery {
	if d, ok := deliveryByExt[Ext(name)]; ok {
		return d
	}
	return DeliverDocument
}

// FormatAllowed renders the allow-list for rejection messages.
func FormatAllowed() string {
	return strings.Join(allowed, ", ")
}

