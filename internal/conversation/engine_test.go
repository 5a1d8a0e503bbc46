package conversation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/labbot/internal/action"
	"github.com/m3rciful/labbot/internal/apperr"
	"github.com/m3rciful/labbot/internal/menu"
	"github.com/m3rciful/labbot/internal/model"
	"github.com/m3rciful/labbot/internal/staging"
	"github.com/m3rciful/labbot/internal/store"
)

const admin int64 = 100

type fakeStore struct {
	mu        sync.Mutex
	subjects  map[int64]model.Subject
	labs      map[int64]model.Lab
	files     map[int64][]model.LabFile
	users     []model.User
	nextID    int64
	failWrite error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subjects: map[int64]model.Subject{1: {ID: 1, Name: "Сети"}},
		labs:     map[int64]model.Lab{},
		files:    map[int64][]model.LabFile{},
		nextID:   10,
	}
}

func (s *fakeStore) CreateSubject(_ context.Context, name string) (model.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return model.Subject{}, s.failWrite
	}
	for _, subj := range s.subjects {
		if subj.Name == name {
			return model.Subject{}, store.ErrConflict
		}
	}
	s.nextID++
	subj := model.Subject{ID: s.nextID, Name: name}
	s.subjects[subj.ID] = subj
	return subj, nil
}

func (s *fakeStore) GetSubject(_ context.Context, id int64) (model.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj, ok := s.subjects[id]
	if !ok {
		return model.Subject{}, store.ErrNotFound
	}
	return subj, nil
}

func (s *fakeStore) ListSubjects(context.Context) ([]model.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Subject, 0, len(s.subjects))
	for _, subj := range s.subjects {
		out = append(out, subj)
	}
	return out, nil
}

func (s *fakeStore) RenameSubject(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj, ok := s.subjects[id]
	if !ok {
		return store.ErrNotFound
	}
	subj.Name = name
	s.subjects[id] = subj
	return nil
}

func (s *fakeStore) CreateLab(_ context.Context, lab model.Lab, files []model.LabFile) (model.Lab, []model.LabFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return model.Lab{}, nil, s.failWrite
	}
	s.nextID++
	lab.ID = s.nextID
	s.labs[lab.ID] = lab
	for i := range files {
		files[i].LabID = lab.ID
	}
	s.files[lab.ID] = files
	return lab, files, nil
}

func (s *fakeStore) GetLab(_ context.Context, id int64) (model.Lab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lab, ok := s.labs[id]
	if !ok {
		return model.Lab{}, store.ErrNotFound
	}
	return lab, nil
}

func (s *fakeStore) UpdateLab(_ context.Context, lab model.Lab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.labs[lab.ID]; !ok {
		return store.ErrNotFound
	}
	s.labs[lab.ID] = lab
	return nil
}

func (s *fakeStore) ListUsers(context.Context) ([]model.User, error) {
	return s.users, nil
}

func (s *fakeStore) onlyLab(t *testing.T) (model.Lab, []model.LabFile) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.labs) != 1 {
		t.Fatalf("labs = %d, want 1", len(s.labs))
	}
	for id, lab := range s.labs {
		return lab, s.files[id]
	}
	return model.Lab{}, nil
}

type fakeChannel struct {
	replies []string
	sent    map[int64]string
	blocked map[int64]bool
	content map[string][]byte
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{sent: map[int64]string{}, blocked: map[int64]bool{}, content: map[string][]byte{}}
}

func (c *fakeChannel) Fetch(_ context.Context, fileID string) (io.ReadCloser, error) {
	data, ok := c.content[fileID]
	if !ok {
		return nil, errors.New("telegram: file is temporarily unavailable")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *fakeChannel) Reply(_ context.Context, v menu.View) error {
	c.replies = append(c.replies, v.Text)
	return nil
}

func (c *fakeChannel) SendTo(_ context.Context, tgID int64, text string) error {
	if c.blocked[tgID] {
		return fmt.Errorf("telegram: Forbidden: bot was blocked by the user (%d)", tgID)
	}
	c.sent[tgID] = text
	return nil
}

func (c *fakeChannel) last() string {
	if len(c.replies) == 0 {
		return ""
	}
	return c.replies[len(c.replies)-1]
}

type harness struct {
	t     *testing.T
	eng   *Engine
	store *fakeStore
	ch    *fakeChannel
	dir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	stager, err := staging.New(dir)
	if err != nil {
		t.Fatalf("staging.New: %v", err)
	}
	st := newFakeStore()
	return &harness{t: t, eng: New(st, stager), store: st, ch: newFakeChannel(), dir: dir}
}

func (h *harness) begin(wf Workflow, id int64) {
	h.t.Helper()
	if err := h.eng.Begin(context.Background(), admin, wf, id, h.ch); err != nil {
		h.t.Fatalf("Begin(%s): %v", wf, err)
	}
}

func (h *harness) send(in Input) bool {
	h.t.Helper()
	in.UserID = admin
	handled, err := h.eng.Handle(context.Background(), in, h.ch)
	if err != nil {
		h.t.Fatalf("Handle: %v", err)
	}
	return handled
}

func (h *harness) text(s string) bool { return h.send(Input{Kind: InputText, Text: s}) }
func (h *harness) cmd(s string) bool  { return h.send(Input{Kind: InputCommand, Text: s}) }
func (h *harness) press(kind action.Kind, id int64) bool {
	return h.send(Input{Kind: InputCallback, Action: action.New(kind, id)})
}

func (h *harness) upload(fileID, name string, data []byte) bool {
	if data != nil {
		h.ch.content[fileID] = data
	}
	return h.send(Input{Kind: InputDocument, File: &staging.FileRef{FileID: fileID, Name: name, Size: int64(len(data))}})
}

func (h *harness) diskFiles() int {
	h.t.Helper()
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		h.t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

// toFiles walks AddLab up to the file step.
func (h *harness) toFiles(title string) {
	h.t.Helper()
	h.begin(AddLab, 0)
	h.press(action.LabSubject, 1)
	h.text(title)
	h.cmd(CmdSkip)
	h.text("до пятницы")
	if got := h.eng.Session(admin).State; got != StepLabFiles {
		h.t.Fatalf("state = %s, want %s", got, StepLabFiles)
	}
}

func TestAddLabSkipFilesCreatesLabWithoutFiles(t *testing.T) {
	h := newHarness(t)
	h.toFiles("ЛР1")
	h.upload("f1", "task.pdf", []byte("%PDF"))
	if h.diskFiles() != 1 {
		t.Fatalf("staged files = %d, want 1", h.diskFiles())
	}

	if !h.cmd(CmdSkip) {
		t.Fatal("/skip not handled")
	}
	lab, files := h.store.onlyLab(t)
	if lab.Title != "ЛР1" || lab.SubjectID != 1 || lab.Desc != nil || *lab.Deadline != "до пятницы" {
		t.Fatalf("unexpected lab %+v", lab)
	}
	if len(files) != 0 {
		t.Fatalf("files = %d, want 0", len(files))
	}
	if h.diskFiles() != 0 {
		t.Fatal("skipped uploads must be removed from disk")
	}
	if h.eng.InProgress(admin) {
		t.Fatal("workflow still in progress")
	}
	if !strings.Contains(h.ch.last(), "Файлов: 0") {
		t.Fatalf("summary = %q", h.ch.last())
	}
}

func TestAddLabDoneWithoutSubjectAborts(t *testing.T) {
	h := newHarness(t)
	h.begin(AddLab, 0)
	h.text("ignored while choosing a subject")
	if h.eng.Session(admin).State != StepLabSubject {
		t.Fatal("text must not advance the subject step")
	}

	h.cmd(CmdDone)
	if len(h.store.labs) != 0 {
		t.Fatal("lab created without subject")
	}
	if h.ch.last() != msgLabMissingFields {
		t.Fatalf("reply = %q", h.ch.last())
	}
	if h.eng.InProgress(admin) {
		t.Fatal("draft must be discarded")
	}
}

func TestValidateLabNamesMissingFields(t *testing.T) {
	subject := int64(3)
	tests := []struct {
		name  string
		draft LabDraft
		want  []string
	}{
		{"empty", LabDraft{}, []string{"subject", "title"}},
		{"no title", LabDraft{SubjectID: &subject, Title: "  "}, []string{"title"}},
		{"no subject", LabDraft{Title: "ЛР1"}, []string{"subject"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLab(&tt.draft)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Fatalf("err %q does not name %s", err, w)
				}
			}
		})
	}

	if err := validateLab(&LabDraft{SubjectID: &subject, Title: "ЛР1"}); err != nil {
		t.Fatalf("complete draft: %v", err)
	}
}

func TestAddLabRejectsUnsupportedThenAcceptsValid(t *testing.T) {
	h := newHarness(t)
	h.toFiles("ЛР2")

	h.upload("bad", "virus.exe", []byte("MZ"))
	if h.eng.Session(admin).State != StepLabFiles {
		t.Fatal("rejection must keep the file step")
	}
	if !strings.Contains(h.ch.last(), ".exe") || !strings.Contains(h.ch.last(), ".pcap") {
		t.Fatalf("rejection must name the extension and allowed set: %q", h.ch.last())
	}
	if h.diskFiles() != 0 {
		t.Fatal("rejected upload reached disk")
	}

	h.upload("good", "dump.PCAP", []byte{0xd4, 0xc3, 0xb2, 0xa1})
	h.cmd(CmdDone)
	_, files := h.store.onlyLab(t)
	if len(files) != 1 || files[0].FileName != "dump.PCAP" || files[0].FileSize != 4 {
		t.Fatalf("files = %+v", files)
	}
	if filepath.Dir(files[0].FilePath) != h.dir || filepath.Base(files[0].FilePath) == "dump.PCAP" {
		t.Fatalf("stored path %q must be a generated name under %s", files[0].FilePath, h.dir)
	}
}

func TestAddLabStagingFailureCreatesNoFileRecord(t *testing.T) {
	h := newHarness(t)
	h.toFiles("ЛР3")

	h.upload("missing", "report.docx", nil)
	if h.ch.last() != fmt.Sprintf(msgFileFailed, "report.docx") {
		t.Fatalf("reply = %q", h.ch.last())
	}
	h.upload("empty", "notes.txt", []byte{})
	h.cmd(CmdDone)

	_, files := h.store.onlyLab(t)
	if len(files) != 0 {
		t.Fatalf("files = %+v, want none", files)
	}
	if h.diskFiles() != 0 {
		t.Fatal("failed staging left files behind")
	}
}

func TestAddLabPhotoIsStaged(t *testing.T) {
	h := newHarness(t)
	h.toFiles("ЛР4")
	h.ch.content["ph"] = []byte{0xff, 0xd8, 0xff}
	h.send(Input{Kind: InputPhoto, File: &staging.FileRef{FileID: "ph", Name: "photo.jpg", Size: 3}})
	if h.ch.last() != msgPhotoStaged {
		t.Fatalf("reply = %q", h.ch.last())
	}
	h.cmd(CmdDone)
	_, files := h.store.onlyLab(t)
	if len(files) != 1 || files[0].FileName != "photo.jpg" {
		t.Fatalf("files = %+v", files)
	}
}

func TestAddLabStoreFailureDiscardsStagedFiles(t *testing.T) {
	h := newHarness(t)
	h.toFiles("ЛР5")
	h.upload("f", "lab.zip", []byte("PK"))
	h.store.failWrite = errors.New("connection reset")

	h.cmd(CmdDone)
	if h.ch.last() != msgLabStoreFailure {
		t.Fatalf("reply = %q", h.ch.last())
	}
	if h.diskFiles() != 0 {
		t.Fatal("staged files must be removed after a failed commit")
	}
	if h.eng.InProgress(admin) {
		t.Fatal("draft must be discarded")
	}
}

func TestAddLabEmptyTitleReprompts(t *testing.T) {
	h := newHarness(t)
	h.begin(AddLab, 0)
	h.press(action.LabSubject, 1)
	h.text("   ")
	if h.eng.Session(admin).State != StepLabTitle || h.ch.last() != msgEmptyLabTitle {
		t.Fatalf("state = %s reply = %q", h.eng.Session(admin).State, h.ch.last())
	}
}

func TestAddLabWithoutSubjects(t *testing.T) {
	h := newHarness(t)
	h.store.subjects = map[int64]model.Subject{}
	h.begin(AddLab, 0)
	if h.eng.InProgress(admin) || h.ch.last() != msgNoSubjectsForLab {
		t.Fatalf("reply = %q", h.ch.last())
	}
}

func TestCancelThenRestartStartsClean(t *testing.T) {
	h := newHarness(t)
	h.toFiles("ЛР6")
	h.upload("f", "a.txt", []byte("x"))

	if !h.cmd(CmdCancel) || h.ch.last() != msgCancelled {
		t.Fatalf("cancel reply = %q", h.ch.last())
	}
	if h.eng.InProgress(admin) || h.diskFiles() != 0 {
		t.Fatal("cancel must clear the draft and its files")
	}
	if len(h.store.labs) != 0 {
		t.Fatal("cancel committed a lab")
	}

	h.begin(AddLab, 0)
	d, ok := h.eng.Session(admin).Draft.(*LabDraft)
	if !ok || d.SubjectID != nil || d.Title != "" || len(d.Files) != 0 {
		t.Fatalf("restarted draft is not empty: %+v", h.eng.Session(admin).Draft)
	}
}

func TestCancelWithoutWorkflow(t *testing.T) {
	h := newHarness(t)
	if h.cmd(CmdCancel) {
		t.Fatal("idle /cancel must fall through to the router")
	}
	if err := h.eng.Cancel(context.Background(), admin, h.ch); err != nil {
		t.Fatal(err)
	}
	if h.ch.last() != msgCancelled {
		t.Fatalf("reply = %q", h.ch.last())
	}
}

func TestNewEntryPointAbandonsDraft(t *testing.T) {
	h := newHarness(t)
	h.toFiles("ЛР7")
	h.upload("f", "a.py", []byte("print(1)"))

	h.begin(AddSubject, 0)
	if _, ok := h.eng.Session(admin).Draft.(*SubjectDraft); !ok {
		t.Fatal("expected subject draft")
	}
	if h.diskFiles() != 0 {
		t.Fatal("abandoned draft left staged files")
	}
	h.text("ОС")
	if len(h.store.labs) != 0 {
		t.Fatal("abandoned lab was committed")
	}
}

func TestUnmatchedInputFallsThrough(t *testing.T) {
	h := newHarness(t)
	h.begin(AddSubject, 0)
	if h.cmd("/admin") {
		t.Fatal("foreign command must not be consumed")
	}
	if h.press(action.ManageLabs, 0) {
		t.Fatal("foreign callback must not be consumed")
	}
	if !h.eng.InProgress(admin) {
		t.Fatal("state must survive unmatched input")
	}
}

func TestAddSubject(t *testing.T) {
	h := newHarness(t)
	h.begin(AddSubject, 0)
	h.text("")
	if h.ch.last() != msgEmptySubjectName || !h.eng.InProgress(admin) {
		t.Fatal("empty name must re-prompt")
	}
	h.text(" Базы данных ")
	if h.ch.last() != fmt.Sprintf(msgSubjectAdded, "Базы данных") {
		t.Fatalf("reply = %q", h.ch.last())
	}

	h.begin(AddSubject, 0)
	h.text("Сети")
	if h.ch.last() != fmt.Sprintf(msgSubjectExists, "Сети") {
		t.Fatalf("duplicate reply = %q", h.ch.last())
	}
	if h.eng.InProgress(admin) {
		t.Fatal("duplicate must end the workflow")
	}
}

func TestNotifySkipsFailedRecipients(t *testing.T) {
	h := newHarness(t)
	h.store.users = []model.User{{TgID: 1}, {TgID: 2}, {TgID: 3}}
	h.ch.blocked[2] = true

	h.begin(Notify, 0)
	h.text("Завтра пары не будет")
	if h.ch.last() != fmt.Sprintf(msgBroadcastDone, 2) {
		t.Fatalf("reply = %q", h.ch.last())
	}
	if len(h.ch.sent) != 2 || h.ch.sent[3] != msgBroadcastPrefix+"Завтра пары не будет" {
		t.Fatalf("sent = %v", h.ch.sent)
	}
}

func TestEditSubjectRenames(t *testing.T) {
	h := newHarness(t)
	h.begin(EditSubject, 1)
	h.text("Компьютерные сети")
	if h.store.subjects[1].Name != "Компьютерные сети" {
		t.Fatalf("subject = %+v", h.store.subjects[1])
	}
	if h.ch.last() != fmt.Sprintf(msgSubjectRenamed, "Сети", "Компьютерные сети") {
		t.Fatalf("reply = %q", h.ch.last())
	}
}

func TestEditMissingEntity(t *testing.T) {
	h := newHarness(t)
	h.begin(EditSubject, 404)
	if h.eng.InProgress(admin) || h.ch.last() != msgSubjectNotFound {
		t.Fatalf("reply = %q", h.ch.last())
	}
	h.begin(EditLab, 404)
	if h.eng.InProgress(admin) || h.ch.last() != msgLabNotFound {
		t.Fatalf("reply = %q", h.ch.last())
	}
}

func TestEditLabFields(t *testing.T) {
	h := newHarness(t)
	desc := "старое"
	h.store.labs[5] = model.Lab{ID: 5, SubjectID: 1, Title: "ЛР1", Desc: &desc}

	h.begin(EditLab, 5)
	h.text("not a button")
	if h.eng.Session(admin).State != StepEditLabField {
		t.Fatal("text must not pick a field")
	}
	h.press(action.EditLabDesc, 0)
	h.cmd(CmdSkip)
	if h.store.labs[5].Desc != nil {
		t.Fatal("/skip must clear the description")
	}

	h.begin(EditLab, 5)
	h.press(action.EditLabTitle, 0)
	if h.cmd(CmdSkip) {
		t.Fatal("title cannot be skipped")
	}
	h.text("ЛР1: сокеты")
	h.begin(EditLab, 5)
	h.press(action.EditLabDeadline, 0)
	h.text("15.12.2026")

	lab := h.store.labs[5]
	if lab.Title != "ЛР1: сокеты" || lab.Deadline == nil || *lab.Deadline != "15.12.2026" {
		t.Fatalf("lab = %+v", lab)
	}
	if h.ch.last() != fmt.Sprintf(msgLabUpdated, "ЛР1: сокеты") {
		t.Fatalf("reply = %q", h.ch.last())
	}
}
