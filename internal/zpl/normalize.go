package zpl

import "strings"

const (
	// markerToken opens a label; group commands are gathered right after it.
	markerToken = "^XA"
	// groupToken is the image group assignment (graphic recall) command.
	groupToken = "^XG"
)

// Normalize moves every line containing ^XG that appears after the first ^XA
// line to a contiguous block directly after that line. Relative order within
// the moved block and among the remaining lines is kept. Text without a
// marker line is returned unchanged.
func Normalize(raw string) string {
	lines := strings.SplitAfter(raw, "\n")
	marker := -1
	for i, line := range lines {
		if strings.Contains(line, markerToken) {
			marker = i
			break
		}
	}
	if marker < 0 {
		return raw
	}

	eol := lineEnding(raw)
	var group, rest []string
	for _, line := range lines[marker+1:] {
		if strings.Contains(line, groupToken) {
			if !strings.HasSuffix(line, "\n") {
				line += eol
			}
			group = append(group, line)
			continue
		}
		rest = append(rest, line)
	}
	if len(group) == 0 {
		return raw
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:marker+1]...)
	out = append(out, group...)
	out = append(out, rest...)

	result := strings.Join(out, "")
	if !strings.HasSuffix(raw, "\n") {
		result = strings.TrimSuffix(result, eol)
	}
	return result
}

func lineEnding(s string) string {
	if strings.Contains(s, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
