package zpl

import (
	"errors"
	"fmt"
)

// ErrNothingToGenerate is returned when there is no loaded document or no
// fields to regenerate. Callers report it to the user; it is not fatal.
var ErrNothingToGenerate = errors.New("nothing to generate")

// FieldType classifies an editable field by the command sequence that matched it.
// The declaration order is also the display precedence.
type FieldType int

const (
	Barcode FieldType = iota
	Image
	Text
)

var fieldTypeNames = [...]string{"barcode", "image", "text"}

func (t FieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
	return fieldTypeNames[t]
}

// MarshalText lets YAML and JSON encoders print the type by name.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Position is a printer-space coordinate in dots.
type Position struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Field is one editable unit discovered in a template.
type Field struct {
	// ID is generated once at extraction and never derived from content.
	ID   string    `yaml:"id" json:"id"`
	Type FieldType `yaml:"type" json:"type"`
	// Position comes from the ^FO/^FT command that opened the statement.
	Position Position `yaml:"position" json:"position"`
	// OriginalValue is the payload (or image name) exactly as found in the
	// normalized source. Regeneration looks fields up by this value.
	OriginalValue string `yaml:"original_value" json:"original_value"`
	// CurrentValue is the user-edited value, seeded with OriginalValue.
	CurrentValue string `yaml:"current_value" json:"current_value"`
	// OrderIndex is the 0-based display rank assigned by Order.
	OrderIndex int `yaml:"order_index" json:"order_index"`
	// ImageName is the recalled graphic name (Image fields only).
	ImageName string `yaml:"image_name,omitempty" json:"image_name,omitempty"`
	// SelectedForEmbedding marks an Image field whose ~DG definition is
	// embedded in the exported file.
	SelectedForEmbedding bool `yaml:"embed,omitempty" json:"embed,omitempty"`
}

// Edited reports whether the current value differs from the source.
func (f Field) Edited() bool {
	return f.CurrentValue != f.OriginalValue
}

// Document is a loaded template: the raw text, its normalized form, the
// image definitions captured from the raw text and the ordered field list.
type Document struct {
	Raw         string
	Normalized  string
	Definitions *DefinitionStore
	Fields      []Field
}

// Load runs the full load pipeline over raw template text.
func Load(raw string) *Document {
	normalized := Normalize(raw)
	return &Document{
		Raw:         raw,
		Normalized:  normalized,
		Definitions: NewDefinitionStore(raw),
		Fields:      Order(Extract(normalized)),
	}
}
