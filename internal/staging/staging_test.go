package staging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m3rciful/labbot/internal/apperr"
)

type fakeSource struct {
	data map[string][]byte
	err  error
}

func (f fakeSource) Fetch(_ context.Context, fileID string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[fileID]
	if !ok {
		return nil, errors.New("file not found on platform")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(filepath.Join(t.TempDir(), "lab_files"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStageWritesRandomNameKeepingExtension(t *testing.T) {
	svc := newService(t)
	src := fakeSource{data: map[string][]byte{"f1": []byte("hello lab")}}

	staged, err := svc.Stage(context.Background(), src, FileRef{FileID: "f1", Name: "../../etc/Report.PDF", Size: 9})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if !strings.HasSuffix(staged.GeneratedName, ".PDF") || strings.Contains(staged.GeneratedName, "Report") {
		t.Fatalf("GeneratedName = %q", staged.GeneratedName)
	}
	if filepath.Dir(staged.Path) != svc.Dir() {
		t.Fatalf("Path %q escapes %q", staged.Path, svc.Dir())
	}
	if staged.Size != 9 || staged.OriginalName != "../../etc/Report.PDF" {
		t.Fatalf("staged = %+v", staged)
	}
	got, err := os.ReadFile(staged.Path)
	if err != nil || string(got) != "hello lab" {
		t.Fatalf("content = %q, %v", got, err)
	}
	if names := listDir(t, svc.Dir()); len(names) != 1 {
		t.Fatalf("upload dir = %v, want only the staged file", names)
	}
}

func TestStageRejectsUnsupportedExtension(t *testing.T) {
	svc := newService(t)
	_, err := svc.Stage(context.Background(), fakeSource{}, FileRef{FileID: "x", Name: "virus.exe"})
	if !apperr.IsKind(err, apperr.KindUnsupportedFormat) {
		t.Fatalf("err = %v, want unsupported_format", err)
	}
	if names := listDir(t, svc.Dir()); len(names) != 0 {
		t.Fatalf("upload dir = %v, want empty", names)
	}
}

func TestStageFailuresLeaveNothingBehind(t *testing.T) {
	tests := []struct {
		name string
		src  fakeSource
	}{
		{"fetch error", fakeSource{err: errors.New("telegram: 502")}},
		{"empty body", fakeSource{data: map[string][]byte{"f": {}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t)
			_, err := svc.Stage(context.Background(), tt.src, FileRef{FileID: "f", Name: "a.txt"})
			if !apperr.IsKind(err, apperr.KindStaging) {
				t.Fatalf("err = %v, want staging", err)
			}
			if names := listDir(t, svc.Dir()); len(names) != 0 {
				t.Fatalf("upload dir = %v, want empty", names)
			}
		})
	}
}

func TestResolveAndDiscard(t *testing.T) {
	svc := newService(t)
	src := fakeSource{data: map[string][]byte{"f": []byte("x")}}
	staged, err := svc.Stage(context.Background(), src, FileRef{FileID: "f", Name: "a.zip"})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := svc.Resolve(staged.Path); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	svc.Discard(context.Background(), staged.Path, staged.Path, "")
	if _, err := svc.Resolve(staged.Path); !apperr.IsKind(err, apperr.KindFileMissing) {
		t.Fatalf("Resolve after discard = %v, want file_missing", err)
	}
	if _, err := svc.Resolve(svc.Dir()); !apperr.IsKind(err, apperr.KindFileMissing) {
		t.Fatalf("Resolve(dir) = %v, want file_missing", err)
	}
}

func TestAccepts(t *testing.T) {
	for _, name := range []string{"a.txt", "b.PDF", "c.docx", "d.xlsx", "e.xls", "f.zip", "g.py", "h.pcap", "i.tar", "j.jpg", "k.JPEG", "l.png"} {
		if !Accepts(name) {
			t.Errorf("Accepts(%q) = false", name)
		}
	}
	for _, name := range []string{"a.exe", "b.gif", "noext", "c.tar.gz", ""} {
		if Accepts(name) {
			t.Errorf("Accepts(%q) = true", name)
		}
	}
	if got := FormatAllowed(); !strings.HasPrefix(got, ".txt, .pdf") || !strings.HasSuffix(got, ".png") {
		t.Fatalf("FormatAllowed = %q", got)
	}
}

func TestDeliveryKind(t *testing.T) {
	tests := map[string]Delivery{
		"photo.jpg": DeliverPhoto,
		"anim.GIF":  DeliverPhoto,
		"demo.mkv":  DeliverVideo,
		"task.pdf":  DeliverDocument,
		"README":    DeliverDocument,
	}
	for name, want := range tests {
		if got := DeliveryKind(name); got != want {
			t.Errorf("DeliveryKind(%q) = %d, want %d", name, got, want)
		}
	}
}
