package zpl

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// EscapeIndicator is the reserved token an editor places in a value to emit a
// raw ^FH indicator instead of a literal underscore. It never occurs in ZPL.
const EscapeIndicator = "\uE05F"

// literalUnderscore is the ^FH escape for a printed '_'.
const literalUnderscore = "_5F"

// accentCodes maps characters the printer cannot take as raw bytes to their
// UTF-8 hex escapes under ^FH.
var accentCodes = map[rune]string{
	'à': "_C3_A0", 'á': "_C3_A1", 'â': "_C3_A2", 'ã': "_C3_A3", 'ä': "_C3_A4", 'å': "_C3_A5",
	'æ': "_C3_A6", 'ç': "_C3_A7", 'è': "_C3_A8", 'é': "_C3_A9", 'ê': "_C3_AA", 'ë': "_C3_AB",
	'ì': "_C3_AC", 'í': "_C3_AD", 'î': "_C3_AE", 'ï': "_C3_AF", 'ñ': "_C3_B1", 'ò': "_C3_B2",
	'ó': "_C3_B3", 'ô': "_C3_B4", 'õ': "_C3_B5", 'ö': "_C3_B6", 'ø': "_C3_B8", 'ù': "_C3_B9",
	'ú': "_C3_BA", 'û': "_C3_BB", 'ü': "_C3_BC", 'ý': "_C3_BD", 'ÿ': "_C3_BF", 'ß': "_C3_9F",
	'À': "_C3_80", 'Á': "_C3_81", 'Â': "_C3_82", 'Ä': "_C3_84", 'Ç': "_C3_87", 'È': "_C3_88",
	'É': "_C3_89", 'Ê': "_C3_8A", 'Ë': "_C3_8B", 'Î': "_C3_8E", 'Ï': "_C3_8F", 'Ñ': "_C3_91",
	'Ô': "_C3_94", 'Ö': "_C3_96", 'Ù': "_C3_99", 'Û': "_C3_9B", 'Ü': "_C3_9C",
	'°': "_C2_B0", '€': "_E2_82_AC",
}

// hexEscape matches an escape already present in a value.
var hexEscape = regexp.MustCompile(`_[0-9A-Fa-f]{2}`)

// encodeValue prepares an edited value for a ^FD payload. inFH reports whether
// the statement already enables ^FH. The second result is true when the output
// relies on ^FH and the statement must carry it.
//
// Escapes already in the value are kept as escapes when the statement had ^FH.
// Other underscores are printed literally: raw when ^FH is off, as _5F when it
// is on or being added.
func encodeValue(value string, inFH bool) (string, bool) {
	value = norm.NFC.String(value)

	needsFH := strings.Contains(value, EscapeIndicator)
	if !needsFH {
		for _, r := range value {
			if _, ok := accentCodes[r]; ok {
				needsFH = true
				break
			}
		}
	}
	fh := inFH || needsFH

	// _XX is only an escape in a statement that already had ^FH.
	escapes := make(map[int]bool)
	if inFH {
		for _, loc := range hexEscape.FindAllStringIndex(value, -1) {
			escapes[loc[0]] = true
		}
	}

	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); {
		if strings.HasPrefix(value[i:], EscapeIndicator) {
			b.WriteByte('_')
			i += len(EscapeIndicator)
			continue
		}
		r, size := utf8.DecodeRuneInString(value[i:])
		switch code, ok := accentCodes[r]; {
		case r == '_' && fh && !escapes[i]:
			b.WriteString(literalUnderscore)
		case ok:
			b.WriteString(code)
		default:
			b.WriteString(value[i : i+size])
		}
		i += size
	}
	return b.String(), needsFH
}

// escapeUnderscores turns every underscore of a payload that is about to gain
// ^FH into a literal escape. EscapeIndicator tokens are left for the caller.
func escapeUnderscores(payload string) string {
	return strings.ReplaceAll(payload, "_", literalUnderscore)
}
