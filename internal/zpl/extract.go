package zpl

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
)

// newID generates field identities. Tests swap it for a deterministic source.
var newID = uuid.NewString

// Extract discovers the editable fields of normalized template text. Images,
// barcodes and text fields are matched independently; a statement claimed by a
// barcode is never also reported as text. The result is in discovery order;
// use Order for display order.
func Extract(src string) []Field {
	var fields []Field
	for m := range imageMatches(src) {
		fields = append(fields, newField(m))
	}
	for m := range barcodeMatches(src) {
		fields = append(fields, newField(m))
	}
	for m := range textMatches(src) {
		fields = append(fields, newField(m))
	}
	return fields
}

func newField(m match) Field {
	f := Field{
		ID:            newID(),
		Type:          m.kind,
		Position:      m.pos,
		OriginalValue: m.value,
		CurrentValue:  m.value,
	}
	if m.kind == Image {
		f.ImageName = m.value
	}
	return f
}

var typePrecedence = []FieldType{Barcode, Image, Text}

// Order groups fields by type (barcodes, images, then text), sorts each group
// by y then x keeping discovery order on ties, and assigns OrderIndex. The
// input slice is not modified.
func Order(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, t := range typePrecedence {
		start := len(out)
		for _, f := range fields {
			if f.Type == t {
				out = append(out, f)
			}
		}
		slices.SortStableFunc(out[start:], func(a, b Field) int {
			if c := cmp.Compare(a.Position.Y, b.Position.Y); c != 0 {
				return c
			}
			return cmp.Compare(a.Position.X, b.Position.X)
		})
	}
	for i := range out {
		out[i].OrderIndex = i
	}
	return out
}

// Ambiguous returns, per type, the original values shared by more than one
// field. Regeneration binds such a value to the first field in the slice.
func Ambiguous(fields []Field) map[FieldType][]string {
	seen := make(map[FieldType]map[string]int)
	var dup map[FieldType][]string
	for _, f := range fields {
		if seen[f.Type] == nil {
			seen[f.Type] = make(map[string]int)
		}
		seen[f.Type][f.OriginalValue]++
		if seen[f.Type][f.OriginalValue] == 2 {
			if dup == nil {
				dup = make(map[FieldType][]string)
			}
			dup[f.Type] = append(dup[f.Type], f.OriginalValue)
		}
	}
	return dup
}
