package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"zpl-editor/internal/session"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// valuesFile is the on-disk form of a set of edits:
//
//	values:
//	  HELLO: WORLD
//	  "12345": "67890"
//	embed:
//	  - LOGO1
type valuesFile struct {
	Values map[string]string `yaml:"values"`
	Embed  []string          `yaml:"embed"`
}

// assignment sets the field found by ref.
type assignment struct {
	ref   string
	value string
}

// editSet is every edit requested on the command line, in application order.
type editSet struct {
	assignments []assignment
	embeds      []string
}

func loadValues(path string) (*valuesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values file: %w", err)
	}
	var vf valuesFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parse values file: %w", err)
	}
	return &vf, nil
}

// edits merges the values file with --set and --embed flags. Flags are
// applied after the file.
func (o *options) edits() (*editSet, error) {
	es := &editSet{}

	if o.valuesPath != "" {
		vf, err := loadValues(o.valuesPath)
		if err != nil {
			return nil, err
		}
		refs := make([]string, 0, len(vf.Values))
		for ref := range vf.Values {
			refs = append(refs, ref)
		}
		slices.Sort(refs)
		for _, ref := range refs {
			es.assignments = append(es.assignments, assignment{ref: ref, value: vf.Values[ref]})
		}
		es.embeds = append(es.embeds, vf.Embed...)
	}

	for _, s := range o.sets {
		ref, value, ok := strings.Cut(s, "=")
		if !ok || ref == "" {
			return nil, fmt.Errorf("invalid --set %q: expected ref=value", s)
		}
		es.assignments = append(es.assignments, assignment{ref: ref, value: value})
	}
	es.embeds = append(es.embeds, o.embeds...)

	return es, nil
}

// apply runs the edits against s and returns how many were applied. When
// strict is false, references that match no field are skipped.
func (es *editSet) apply(s *session.Session, strict bool) (int, error) {
	applied := 0
	for _, a := range es.assignments {
		id, err := s.Resolve(a.ref)
		if err != nil {
			if !strict && errors.Is(err, session.ErrUnknownField) {
				log.Debug().Str("ref", a.ref).Msg("No field for value, skipping")
				continue
			}
			return applied, err
		}
		if err := s.SetValue(id, a.value); err != nil {
			return applied, err
		}
		applied++
	}
	for _, ref := range es.embeds {
		id, err := s.Resolve(ref)
		if err != nil {
			if !strict && errors.Is(err, session.ErrUnknownField) {
				log.Debug().Str("ref", ref).Msg("No image to embed, skipping")
				continue
			}
			return applied, err
		}
		if err := s.SetEmbed(id, true); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
