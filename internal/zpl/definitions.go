package zpl

import "strings"

// definitionSpans returns the extent of every ~DG download-graphic command in
// src, up to the next ^ or ~ command. A ~DG inside ^FD data is printed text and
// is not a definition.
func definitionSpans(src string) []span {
	var spans []span
	for _, c := range tokenize(src) {
		if c.code == "~DG" {
			spans = append(spans, span{c.start, c.args.end})
		}
	}
	return spans
}

// removeDefinitions deletes every ~DG command from src.
func removeDefinitions(src string) string {
	spans := definitionSpans(src)
	edits := make([]edit, 0, len(spans))
	for _, sp := range spans {
		edits = append(edits, edit{start: sp.start, end: sp.end})
	}
	return applyEdits(src, edits)
}

// DefinitionStore holds the raw image definition blocks of a template. It is
// built once from the unnormalized text and never changes afterwards.
type DefinitionStore struct {
	blocks []string
}

// NewDefinitionStore captures every ~DG block in raw.
func NewDefinitionStore(raw string) *DefinitionStore {
	spans := definitionSpans(raw)
	blocks := make([]string, 0, len(spans))
	for _, sp := range spans {
		blocks = append(blocks, raw[sp.start:sp.end])
	}
	return &DefinitionStore{blocks: blocks}
}

// Len returns the number of captured blocks.
func (s *DefinitionStore) Len() int {
	return len(s.blocks)
}

// Names lists the declared names in source order.
func (s *DefinitionStore) Names() []string {
	names := make([]string, 0, len(s.blocks))
	for _, b := range s.blocks {
		names = append(names, definitionName(b))
	}
	return names
}

// Lookup returns the first definition block declaring exactly name, or "" when
// there is none. LOGO1 does not match a block declaring LOGO10.
func (s *DefinitionStore) Lookup(name string) string {
	if name == "" {
		return ""
	}
	for _, b := range s.blocks {
		if definitionName(b) == name {
			return b
		}
	}
	return ""
}

func definitionName(block string) string {
	name, _ := objectName(block, span{3, len(block)})
	return name
}

// renameDefinition rewrites the declared name of a ~DG block.
func renameDefinition(block, name string) string {
	_, at := objectName(block, span{3, len(block)})
	return block[:at.start] + name + block[at.end:]
}

// unwrapDefinition strips ^XA/^XZ wrappers and surrounding whitespace.
func unwrapDefinition(block string) string {
	block = strings.ReplaceAll(block, "^XA", "")
	block = strings.ReplaceAll(block, "^XZ", "")
	return strings.TrimSpace(block)
}
