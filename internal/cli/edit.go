package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"zpl-editor/internal/preview"
	"zpl-editor/internal/session"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const editHelp = `commands:
  fields                 list fields
  set <ref> <value>      change a field (ref: id, #index or original value)
  embed <ref>            embed an image definition on export
  unembed <ref>          stop embedding an image definition
  preview                render the preview now
  export [path]          write the export file
  quit                   leave
`

func editCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Edit a template interactively with a live preview",
		Long: `Reads edit commands from stdin, one per line. Every edit schedules a
preview render that is written to --output once typing pauses.

` + editHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			s, err := opts.openSession(args[0], true)
			if err != nil {
				return err
			}

			out := opts.output
			if out == "" {
				out = previewPath(args[0])
			}

			renderer, closeRenderer := opts.newRenderer(ctx)
			defer closeRenderer()

			delay := time.Duration(opts.cfg.PreviewDebounceMS) * time.Millisecond
			d := preview.NewDebouncer(renderer, delay, previewWriter(out))
			defer d.Close()
			s.Attach(d)

			e := &editor{
				session:    s,
				debouncer:  d,
				w:          cmd.OutOrStdout(),
				exportPath: exportPath(args[0]),
			}
			return e.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Preview path (default <name>_preview.png)")
	return cmd
}

// previewWriter stores each delivered preview at path. Render failures
// leave the previous image in place.
func previewWriter(path string) func(preview.Result) {
	return func(res preview.Result) {
		if res.Err != nil {
			log.Warn().Err(res.Err).Uint64("generation", res.Generation).Msg("Preview failed")
			return
		}
		if err := writeFile(path, res.Image); err != nil {
			log.Error().Err(err).Msg("Write preview")
			return
		}
		log.Info().Str("output", path).Uint64("generation", res.Generation).Msg("Preview updated")
	}
}

// editor executes line commands against a session.
type editor struct {
	session    *session.Session
	debouncer  *preview.Debouncer
	w          io.Writer
	exportPath string
}

func (e *editor) run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		quit, err := e.exec(line)
		if err != nil {
			fmt.Fprintf(e.w, "error: %v\n", err)
		}
		if quit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	// Render whatever is still waiting on the debounce delay before leaving.
	e.debouncer.Flush()
	return nil
}

func (e *editor) exec(line string) (bool, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprint(e.w, editHelp)
	case "fields":
		return false, writeFieldsTable(e.w, e.session.Fields())
	case "set":
		ref, value, ok := strings.Cut(rest, " ")
		if !ok {
			return false, fmt.Errorf("usage: set <ref> <value>")
		}
		id, err := e.session.Resolve(ref)
		if err != nil {
			return false, err
		}
		return false, e.session.SetValue(id, value)
	case "embed", "unembed":
		id, err := e.session.Resolve(rest)
		if err != nil {
			return false, err
		}
		return false, e.session.SetEmbed(id, verb == "embed")
	case "preview":
		text, err := e.session.Generate()
		if err != nil {
			return false, err
		}
		e.debouncer.Trigger(text)
		e.debouncer.Flush()
	case "export":
		path := e.exportPath
		if rest != "" {
			path = rest
		}
		if err := exportSession(e.session, path); err != nil {
			return false, err
		}
		fmt.Fprintf(e.w, "exported %s\n", path)
	default:
		return false, fmt.Errorf("unknown command %q (try help)", verb)
	}
	return false, nil
}
