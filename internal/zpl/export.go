package zpl

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// ExportExtension is the extension of exported template files.
const ExportExtension = ".zpl"

// housekeepingBlock matches a stored-object delete label (^XA^ID...^XZ) that
// label designers append to clean up downloaded graphics after printing.
var housekeepingBlock = regexp.MustCompile(`(?s)\^XA\s*\^ID.*?\^XZ[ \t]*(?:\r?\n)?`)

// printBufferMarker is where embedded definitions go when the label sets it.
const printBufferMarker = "^PW"

// barcodeFlagIndex is the 0-based argument position of the interpretation line
// flag for each barcode command.
var barcodeFlagIndex = map[string]int{
	"^BC": 2,
	"^B3": 3,
}

// Export turns regenerated text into the shippable file. Steps run in order
// and each is idempotent:
//
//  1. every ^FD is preceded by ^FH
//  2. leftover EscapeIndicator tokens become '_'
//  3. ^XA^ID...^XZ housekeeping labels are removed
//  4. ~DG definition blocks are removed
//  5. barcode interpretation lines are forced on
//  6. definitions of Image fields selected for embedding are re-inserted,
//     renamed to the field's current value
//
// Running Export on its own output yields the same text.
func Export(src string, fields []Field, store *DefinitionStore) (string, error) {
	if src == "" {
		return "", ErrNothingToGenerate
	}
	out := ensureHexMarkers(src)
	out = strings.ReplaceAll(out, EscapeIndicator, "_")
	out = housekeepingBlock.ReplaceAllString(out, "")
	out = removeDefinitions(out)
	out = forceInterpretationLine(out)
	out = embedDefinitions(out, fields, store)
	return out, nil
}

func ensureHexMarkers(src string) string {
	var edits []edit
	for st := range statements(src) {
		for i, c := range st.cmds {
			if c.code != "^FD" || st.hasBefore("^FH", i) {
				continue
			}
			edits = append(edits,
				edit{start: c.start, end: c.start, text: "^FH"},
				edit{start: c.args.start, end: c.args.end, text: escapeUnderscores(c.text(src))},
			)
		}
	}
	return applyEdits(src, edits)
}

func forceInterpretationLine(src string) string {
	var edits []edit
	for _, c := range tokenize(src) {
		idx, ok := barcodeFlagIndex[c.code]
		if !ok {
			continue
		}
		raw := c.text(src)
		args := strings.TrimRight(raw, " \t\r\n")
		params := strings.Split(args, ",")
		for len(params) <= idx {
			params = append(params, "")
		}
		if params[idx] == "Y" {
			continue
		}
		params[idx] = "Y"
		edits = append(edits, edit{
			start: c.args.start,
			end:   c.args.start + len(args),
			text:  strings.Join(params, ","),
		})
	}
	return applyEdits(src, edits)
}

// embedDefinitions inserts the selected image definitions after the first ^XA,
// directly before that label's ^PW when it has one.
func embedDefinitions(src string, fields []Field, store *DefinitionStore) string {
	if store == nil {
		return src
	}
	seen := make(map[string]bool)
	var blocks []string
	for _, f := range fields {
		if f.Type != Image || !f.SelectedForEmbedding || seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		block := store.Lookup(f.ImageName)
		if block == "" {
			log.Warn().Str("image", f.ImageName).Msg("No definition found for embedded image")
			continue
		}
		blocks = append(blocks, unwrapDefinition(renameDefinition(block, f.CurrentValue)))
	}
	if len(blocks) == 0 {
		return src
	}

	eol := lineEnding(src)
	group := strings.Join(blocks, eol) + eol

	at := 0
	if open := strings.Index(src, markerToken); open >= 0 {
		at = open + len(markerToken)
		label := src[at:]
		if end := strings.Index(label, "^XZ"); end >= 0 {
			label = label[:end]
		}
		if pw := strings.Index(label, printBufferMarker); pw >= 0 {
			at += pw
		} else {
			group = eol + group
			if strings.HasPrefix(src[at:], eol) {
				group = strings.TrimSuffix(group, eol)
			}
		}
	}
	return src[:at] + group + src[at:]
}
