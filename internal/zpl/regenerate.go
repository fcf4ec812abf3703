package zpl

import (
	"github.com/rs/zerolog/log"
)

// Regenerate rewrites normalized template text with the current values of
// fields. Statements are found again with the extraction matchers and fields
// are looked up per type by OriginalValue; a statement without a matching
// field, or whose field is unedited, is copied unchanged. The source is never
// modified and the result depends only on its inputs.
//
// When two fields of one type share an OriginalValue the first one in fields
// wins for every statement carrying that value.
func Regenerate(src string, fields []Field) (string, error) {
	if src == "" || len(fields) == 0 {
		return "", ErrNothingToGenerate
	}

	lookup := make(map[FieldType]map[string]Field, len(typePrecedence))
	for _, t := range typePrecedence {
		lookup[t] = make(map[string]Field)
	}
	for _, f := range fields {
		if _, dup := lookup[f.Type][f.OriginalValue]; dup {
			log.Debug().Str("type", f.Type.String()).Str("value", f.OriginalValue).Msg("Duplicate original value, keeping first field")
			continue
		}
		lookup[f.Type][f.OriginalValue] = f
	}

	var edits []edit
	for m := range imageMatches(src) {
		f, ok := lookup[Image][m.value]
		if !ok || !f.Edited() {
			continue
		}
		edits = append(edits, edit{start: m.valueSpan.start, end: m.valueSpan.end, text: f.CurrentValue})
	}
	for m := range barcodeMatches(src) {
		edits = appendPayloadEdits(edits, m, lookup[Barcode])
	}
	for m := range textMatches(src) {
		edits = appendPayloadEdits(edits, m, lookup[Text])
	}

	return applyEdits(src, edits), nil
}

func appendPayloadEdits(edits []edit, m match, byValue map[string]Field) []edit {
	f, ok := byValue[m.value]
	if !ok || !f.Edited() {
		return edits
	}
	encoded, needsFH := encodeValue(f.CurrentValue, m.hasFH)
	if needsFH && !m.hasFH {
		edits = append(edits, edit{start: m.fdStart, end: m.fdStart, text: "^FH"})
	}
	return append(edits, edit{start: m.valueSpan.start, end: m.valueSpan.end, text: encoded})
}
