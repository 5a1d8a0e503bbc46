// Package action decodes inline button payloads into a closed set of actions.
package action

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/m3rciful/labbot/core/telegram/callbacks"
	"github.com/m3rciful/labbot/core/telegram/keyboard"
)

// Kind enumerates every inline action the bot understands.
type Kind int

const (
	Unknown Kind = iota

	Subject
	Lab
	LabFiles
	DownloadFile
	DeleteLab
	EditLab
	DeleteSubject
	EditSubject
	LabSubject

	AddSubject
	Notify
	AddLab
	ManageSubjects
	ManageLabs
	BackToSubjects
	BackToAdmin
	EditLabTitle
	EditLabDesc
	EditLabDeadline
)

type spec struct {
	tag   string
	hasID bool
}

var specs = map[Kind]spec{
	Subject:         {"subject", true},
	Lab:             {"lab", true},
	LabFiles:        {"lab_files", true},
	DownloadFile:    {"download_file", true},
	DeleteLab:       {"delete_lab", true},
	EditLab:         {"edit_lab", true},
	DeleteSubject:   {"delete_subject", true},
	EditSubject:     {"edit_subject", true},
	LabSubject:      {"lab_subj", true},
	AddSubject:      {"add_subject", false},
	Notify:          {"notify", false},
	AddLab:          {"add_lab", false},
	ManageSubjects:  {"manage_subjects", false},
	ManageLabs:      {"manage_labs", false},
	BackToSubjects:  {"back_to_subjects", false},
	BackToAdmin:     {"back_to_admin", false},
	EditLabTitle:    {"edit_lab_title", false},
	EditLabDesc:     {"edit_lab_desc", false},
	EditLabDeadline: {"edit_lab_deadline", false},
}

var byTag = func() map[string]Kind {
	m := make(map[string]Kind, len(specs))
	for k, s := range specs {
		m[s.tag] = k
	}
	return m
}()

var (
	// ErrUnknown marks a tag outside the known set.
	ErrUnknown = errors.New("action: unknown tag")
	// ErrMalformed marks a known tag with a missing, extra or non-numeric id.
	ErrMalformed = errors.New("action: malformed payload")
)

// Action is a decoded button press.
type Action struct {
	Kind Kind
	ID   int64
}

// Tag returns the wire tag of k, or "" for Unknown.
func (k Kind) Tag() string { return specs[k].tag }

// HasID reports whether actions of kind k carry an entity id.
func (k Kind) HasID() bool { return specs[k].hasID }

// Kinds returns every known kind.
func Kinds() []Kind {
	out := make([]Kind, 0, len(specs))
	for k := Subject; k <= EditLabDeadline; k++ {
		out = append(out, k)
	}
	return out
}

// Parse decodes callback data of the form "tag" or "tag:id".
func Parse(data string) (Action, error) {
	tag, payload := callbacks.ParseCallbackData(data)
	kind, ok := byTag[tag]
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknown, tag)
	}
	if !kind.HasID() {
		if payload != "" {
			return Action{}, fmt.Errorf("%w: %q takes no id", ErrMalformed, tag)
		}
		return Action{Kind: kind}, nil
	}
	id, err := callbacks.PayloadInt64(payload)
	if err != nil {
		return Action{}, fmt.Errorf("%w: %q needs a positive id", ErrMalformed, data)
	}
	return Action{Kind: kind, ID: id}, nil
}

// New builds an action carrying id; id is ignored for bare kinds.
func New(kind Kind, id int64) Action {
	if !kind.HasID() {
		id = 0
	}
	return Action{Kind: kind, ID: id}
}

// String renders the callback data.
func (a Action) String() string {
	if a.Kind.HasID() {
		return callbacks.Encode(a.Kind.Tag(), strconv.FormatInt(a.ID, 10))
	}
	return a.Kind.Tag()
}

// Button returns an inline button that sends a when pressed.
func (a Action) Button(text string) keyboard.InlineBtn {
	if a.Kind.HasID() {
		return keyboard.InlineBtn{Text: text, Unique: a.Kind.Tag(), Data: strconv.FormatInt(a.ID, 10)}
	}
	return keyboard.InlineBtn{Text: text, Unique: a.Kind.Tag()}
}
