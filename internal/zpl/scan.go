package zpl

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// span is a half-open byte range into the source text.
type span struct {
	start, end int
}

// command is one ^XX or ~XX command with its argument bytes.
type command struct {
	code  string // upper-cased prefix and name, e.g. "^FO"
	start int    // offset of the prefix character
	args  span
}

func (c command) text(src string) string {
	return src[c.args.start:c.args.end]
}

// tokenize splits src into commands. Arguments run until the next command
// prefix; ^FD data only stops at '^' so a tilde can appear in printed text.
// Bytes before the first command are skipped.
func tokenize(src string) []command {
	var cmds []command
	for i := 0; i < len(src); {
		c := src[i]
		if c != '^' && c != '~' {
			i++
			continue
		}
		if i+3 > len(src) {
			break
		}
		code := strings.ToUpper(src[i : i+3])
		j := i + 3
		for j < len(src) && src[j] != '^' && (src[j] != '~' || code == "^FD") {
			j++
		}
		cmds = append(cmds, command{code: code, start: i, args: span{i + 3, j}})
		i = j
	}
	return cmds
}

// statement is the run of commands up to and including a ^FS. start is the
// offset just past the previous ^FS and identifies the statement structurally.
type statement struct {
	start int
	cmds  []command
}

// statements yields every statement of src in source order. Trailing commands
// without a closing ^FS form a final statement.
func statements(src string) iter.Seq[statement] {
	return func(yield func(statement) bool) {
		cmds := tokenize(src)
		begin, start := 0, 0
		for i, c := range cmds {
			if c.code != "^FS" {
				continue
			}
			if !yield(statement{start: start, cmds: cmds[begin : i+1]}) {
				return
			}
			begin, start = i+1, c.start+3
		}
		if begin < len(cmds) {
			yield(statement{start: start, cmds: cmds[begin:]})
		}
	}
}

// index returns the index of the first command with code at or after from.
func (st statement) index(code string, from int) int {
	for i := from; i < len(st.cmds); i++ {
		if st.cmds[i].code == code {
			return i
		}
	}
	return -1
}

// positionBefore returns the index of the last positioning command before idx.
func (st statement) positionBefore(idx int) int {
	for i := idx - 1; i >= 0; i-- {
		if isPositioning(st.cmds[i].code) {
			return i
		}
	}
	return -1
}

func (st statement) hasBefore(code string, idx int) bool {
	i := st.index(code, 0)
	return i >= 0 && i < idx
}

func isPositioning(code string) bool {
	return code == "^FO" || code == "^FT"
}

func isBarcode(code string) bool {
	return code == "^BC" || code == "^B3"
}

// parsePosition reads the x,y arguments of a positioning command. A missing or
// non-integer coordinate is an error; there is no silent default.
func parsePosition(src string, c command) (Position, error) {
	args := strings.TrimSpace(c.text(src))
	parts := strings.Split(args, ",")
	if len(parts) < 2 {
		return Position{}, fmt.Errorf("parse position %q: want x,y", args)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Position{}, fmt.Errorf("parse position x %q: %w", args, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Position{}, fmt.Errorf("parse position y %q: %w", args, err)
	}
	return Position{X: x, Y: y}, nil
}

// objectName locates the object name inside the arguments of ^XG or ~DG,
// skipping an optional "d:" device prefix and stopping at the extension or
// the first parameter separator.
func objectName(src string, args span) (string, span) {
	i := args.start
	for i < args.end && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i+1 < args.end && src[i+1] == ':' {
		i += 2
	}
	j := i
	for j < args.end && !strings.ContainsRune(".,\r\n\t ", rune(src[j])) {
		j++
	}
	return src[i:j], span{i, j}
}

// edit replaces src[start:end] with text. An empty range is an insertion.
type edit struct {
	start, end int
	text       string
}

// applyEdits writes src with non-overlapping edits applied in offset order.
func applyEdits(src string, edits []edit) string {
	if len(edits) == 0 {
		return src
	}
	slices.SortStableFunc(edits, func(a, b edit) int { return cmp.Compare(a.start, b.start) })
	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, e := range edits {
		b.WriteString(src[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(src[last:])
	return b.String()
}
