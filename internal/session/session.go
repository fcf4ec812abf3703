package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"zpl-editor/internal/zpl"

	"github.com/rs/zerolog/log"
)

// ErrUnknownField is returned for a field reference the session cannot resolve.
var ErrUnknownField = errors.New("unknown field")

// Previewer receives regenerated text after every edit.
type Previewer interface {
	Trigger(zpl string) uint64
}

// Session is one loaded template being edited. The document is immutable; the
// field list is replaced wholesale on every edit so snapshots returned by
// Fields stay valid for readers that hold them.
type Session struct {
	doc *zpl.Document

	mu        sync.Mutex
	fields    []zpl.Field
	previewer Previewer
}

// New loads raw template text into a new session.
func New(raw string) *Session {
	doc := zpl.Load(raw)
	for t, values := range zpl.Ambiguous(doc.Fields) {
		log.Warn().Str("type", t.String()).Strs("values", values).
			Msg("Fields share an original value; edits apply to the first of them")
	}
	log.Debug().Int("fields", len(doc.Fields)).Int("definitions", doc.Definitions.Len()).Msg("Template loaded")
	return &Session{doc: doc, fields: doc.Fields}
}

// Document returns the loaded document.
func (s *Session) Document() *zpl.Document {
	return s.doc
}

// Attach sets the previewer notified after each edit.
func (s *Session) Attach(p Previewer) {
	s.mu.Lock()
	s.previewer = p
	s.mu.Unlock()
}

// Fields returns the current field snapshot. It must be treated as read-only.
func (s *Session) Fields() []zpl.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields
}

// Resolve maps a field reference to a field id. A reference is a field id,
// "#N" for the field at order index N, or an original value (first match in
// display order).
func (s *Session) Resolve(ref string) (string, error) {
	fields := s.Fields()
	for _, f := range fields {
		if f.ID == ref {
			return f.ID, nil
		}
	}
	if n, ok := strings.CutPrefix(ref, "#"); ok {
		if i, err := strconv.Atoi(n); err == nil && i >= 0 && i < len(fields) {
			return fields[i].ID, nil
		}
	}
	for _, f := range fields {
		if f.OriginalValue == ref {
			return f.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, ref)
}

// SetValue replaces the current value of field id.
func (s *Session) SetValue(id, value string) error {
	return s.update(id, func(f *zpl.Field) { f.CurrentValue = value })
}

// SetEmbed marks an image field for embedding in the exported file. It is
// ignored for non-image fields.
func (s *Session) SetEmbed(id string, embed bool) error {
	return s.update(id, func(f *zpl.Field) {
		if f.Type == zpl.Image {
			f.SelectedForEmbedding = embed
		}
	})
}

// update installs a new field snapshot and triggers its preview under the
// lock, so previews are triggered in the order snapshots are installed.
func (s *Session) update(id string, apply func(*zpl.Field)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, f := range s.fields {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	next := make([]zpl.Field, len(s.fields))
	copy(next, s.fields)
	apply(&next[idx])
	s.fields = next

	if s.previewer == nil {
		return nil
	}
	text, err := zpl.Regenerate(s.doc.Normalized, next)
	if err != nil {
		log.Debug().Err(err).Msg("Skipping preview")
		return nil
	}
	s.previewer.Trigger(text)
	return nil
}

// Generate regenerates the template from the current field values.
func (s *Session) Generate() (string, error) {
	return zpl.Regenerate(s.doc.Normalized, s.Fields())
}

// Export regenerates the template and applies export cleanup.
func (s *Session) Export() (string, error) {
	fields := s.Fields()
	text, err := zpl.Regenerate(s.doc.Normalized, fields)
	if err != nil {
		return "", err
	}
	return zpl.Export(text, fields, s.doc.Definitions)
}
