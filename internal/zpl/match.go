package zpl

import (
	"iter"

	"github.com/rs/zerolog/log"
)

// match is one field candidate found by a matcher. Spans point into the
// source the matcher ran over, so regeneration can rewrite in place.
type match struct {
	kind FieldType
	stmt int // statement start offset
	pos  Position
	// value is the payload or image name; valueSpan is where it sits.
	value     string
	valueSpan span
	// fdStart is the offset of ^FD (payload matches only), where a missing
	// ^FH is inserted.
	fdStart int
	hasFH   bool
}

// imageMatches yields statements that position a recalled graphic:
// ^FOx,y ... ^XGd:NAME.GRF,mx,my ^FS.
func imageMatches(src string) iter.Seq[match] {
	return func(yield func(match) bool) {
		for st := range statements(src) {
			xg := st.index("^XG", 0)
			if xg < 0 {
				continue
			}
			p := st.positionBefore(xg)
			if p < 0 {
				continue
			}
			name, nameSpan := objectName(src, st.cmds[xg].args)
			if name == "" {
				continue
			}
			pos, err := parsePosition(src, st.cmds[p])
			if err != nil {
				log.Debug().Err(err).Int("offset", st.cmds[p].start).Msg("Dropping malformed image match")
				continue
			}
			m := match{kind: Image, stmt: st.start, pos: pos, value: name, valueSpan: nameSpan, fdStart: -1}
			if !yield(m) {
				return
			}
		}
	}
}

// barcodeMatches yields statements where a positioning command is directly
// followed by ^BC or ^B3 (optionally preceded by ^BY) and later by ^FD.
func barcodeMatches(src string) iter.Seq[match] {
	return func(yield func(match) bool) {
		for st := range statements(src) {
			m, ok := barcodeIn(src, st)
			if !ok {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

func barcodeIn(src string, st statement) (match, bool) {
	for p, c := range st.cmds {
		if !isPositioning(c.code) {
			continue
		}
		b := p + 1
		if b < len(st.cmds) && st.cmds[b].code == "^BY" {
			b++
		}
		if b >= len(st.cmds) || !isBarcode(st.cmds[b].code) {
			continue
		}
		fd := st.index("^FD", b+1)
		if fd < 0 {
			return match{}, false
		}
		return payloadMatch(src, st, Barcode, p, fd)
	}
	return match{}, false
}

// payloadMatches yields every statement with a positioning command followed by
// ^FD. Barcode statements match too; textMatches subtracts them.
func payloadMatches(src string) iter.Seq[match] {
	return func(yield func(match) bool) {
		for st := range statements(src) {
			fd := st.index("^FD", 0)
			if fd < 0 {
				continue
			}
			p := st.positionBefore(fd)
			if p < 0 {
				continue
			}
			m, ok := payloadMatch(src, st, Text, p, fd)
			if !ok {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

func payloadMatch(src string, st statement, kind FieldType, p, fd int) (match, bool) {
	data := st.cmds[fd].args
	if data.start == data.end {
		return match{}, false
	}
	pos, err := parsePosition(src, st.cmds[p])
	if err != nil {
		log.Debug().Err(err).Str("kind", kind.String()).Int("offset", st.cmds[p].start).Msg("Dropping malformed match")
		return match{}, false
	}
	return match{
		kind:      kind,
		stmt:      st.start,
		pos:       pos,
		value:     src[data.start:data.end],
		valueSpan: data,
		fdStart:   st.cmds[fd].start,
		hasFH:     st.hasBefore("^FH", fd),
	}, true
}

// claims collects the statement offsets of a match sequence.
func claims(seq iter.Seq[match]) map[int]struct{} {
	claimed := make(map[int]struct{})
	for m := range seq {
		claimed[m.stmt] = struct{}{}
	}
	return claimed
}

// exclude drops matches whose statement is in claimed.
func exclude(seq iter.Seq[match], claimed map[int]struct{}) iter.Seq[match] {
	return func(yield func(match) bool) {
		for m := range seq {
			if _, ok := claimed[m.stmt]; ok {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// textMatches is payloadMatches minus every statement claimed by a barcode.
func textMatches(src string) iter.Seq[match] {
	return exclude(payloadMatches(src), claims(barcodeMatches(src)))
}
