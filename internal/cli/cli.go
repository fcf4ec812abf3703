package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"zpl-editor/internal/cache"
	"zpl-editor/internal/config"
	"zpl-editor/internal/filewalker"
	"zpl-editor/internal/preview"
	"zpl-editor/internal/render"
	"zpl-editor/internal/session"
	"zpl-editor/internal/textutil"
	"zpl-editor/internal/worker"
	"zpl-editor/internal/zpl"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// options carries the flags shared by every command.
type options struct {
	cfg *config.Config

	valuesPath string
	sets       []string
	embeds     []string
	dpmm       int
	width      float64
	height     float64
	output     string
}

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "zpledit",
		Short:        "Edit the variable fields of ZPL label templates",
		Long:         "Regenerates a ZPL template with new field values and exports a self-contained printer file.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.valuesPath, "values", "", "YAML file with values (original → new) and images to embed")
	flags.StringArrayVar(&opts.sets, "set", nil, "Set a field: ref=value (ref is a field id, #index or original value)")
	flags.StringArrayVar(&opts.embeds, "embed", nil, "Embed the definition of an image field (ref)")
	flags.IntVar(&opts.dpmm, "dpmm", 0, "Print density in dots per millimetre (overrides RENDER_DPMM)")
	flags.Float64Var(&opts.width, "width", 0, "Label width in inches (overrides LABEL_WIDTH)")
	flags.Float64Var(&opts.height, "height", 0, "Label height in inches (overrides LABEL_HEIGHT)")

	rootCmd.AddCommand(fieldsCmd(opts))
	rootCmd.AddCommand(generateCmd(opts))
	rootCmd.AddCommand(exportCmd(opts))
	rootCmd.AddCommand(previewCmd(opts))
	rootCmd.AddCommand(editCmd(opts))
	rootCmd.AddCommand(batchCmd(opts))

	return rootCmd
}

// load reads configuration and applies flag overrides.
func (o *options) load(cmd *cobra.Command) error {
	o.cfg = config.Load()

	level, err := zerolog.ParseLevel(o.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	flags := cmd.Flags()
	if flags.Changed("dpmm") {
		o.cfg.RenderDPMM = o.dpmm
	}
	if flags.Changed("width") {
		o.cfg.LabelWidth = o.width
	}
	if flags.Changed("height") {
		o.cfg.LabelHeight = o.height
	}
	return nil
}

func fieldsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields <file>",
		Short: "List the editable fields of a template in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asYAML, _ := cmd.Flags().GetBool("yaml")
			s, err := opts.openSession(args[0], true)
			if err != nil {
				return err
			}
			if asYAML {
				return writeFieldsYAML(cmd.OutOrStdout(), s.Fields())
			}
			return writeFieldsTable(cmd.OutOrStdout(), s.Fields())
		},
	}
	cmd.Flags().Bool("yaml", false, "Print fields as YAML")
	return cmd
}

func generateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Regenerate a template with new field values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(args[0], true)
			if err != nil {
				return err
			}
			text, err := s.Generate()
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			if opts.output == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), text)
				return err
			}
			return writeFile(opts.output, []byte(text))
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path (default stdout)")
	return cmd
}

func exportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write a cleaned, self-contained printer file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(args[0], true)
			if err != nil {
				return err
			}
			out := opts.output
			if out == "" {
				out = exportPath(args[0])
			}
			return exportSession(s, out)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path (default <name>_edited.zpl)")
	return cmd
}

func previewCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Render the regenerated label to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			s, err := opts.openSession(args[0], true)
			if err != nil {
				return err
			}
			text, err := s.Generate()
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			renderer, closeRenderer := opts.newRenderer(ctx)
			defer closeRenderer()

			img, err := renderer.Render(ctx, text)
			if err != nil {
				return fmt.Errorf("render preview: %w", err)
			}
			out := opts.output
			if out == "" {
				out = previewPath(args[0])
			}
			if err := writeFile(out, img); err != nil {
				return err
			}
			log.Info().Str("output", out).Int("bytes", len(img)).Msg("Preview written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path (default <name>_preview.png)")
	return cmd
}

func batchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <input-dir> <output-dir>",
		Short: "Apply values to every template under a directory and export them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runBatch(args[0], args[1])
		},
	}
}

// batchResult describes one exported template.
type batchResult struct {
	Output string
	Edits  int
}

func (o *options) runBatch(inputDir, outputDir string) error {
	ctx, cancel := setupContext()
	defer cancel()

	entries, err := filewalker.Walk(inputDir)
	if err != nil {
		return fmt.Errorf("walk input directory: %w", err)
	}

	edits, err := o.edits()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	log.Info().Int("templates", len(entries)).Int("workers", o.cfg.WorkerCount).Msg("Starting batch export")

	pool := worker.NewPool[filewalker.FileEntry, batchResult](o.cfg.WorkerCount,
		func(ctx context.Context, entry filewalker.FileEntry) (batchResult, error) {
			raw, err := os.ReadFile(entry.Path)
			if err != nil {
				return batchResult{}, fmt.Errorf("read template: %w", err)
			}
			s := session.New(string(raw))
			applied, err := edits.apply(s, false)
			if err != nil {
				return batchResult{}, err
			}
			out := filepath.Join(outputDir, strings.TrimSuffix(entry.Rel, filepath.Ext(entry.Rel))+zpl.ExportExtension)
			if err := exportSession(s, out); err != nil {
				return batchResult{}, err
			}
			return batchResult{Output: out, Edits: applied}, nil
		},
	)

	results := pool.Execute(ctx, entries)

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.Error().Err(r.Err).Str("file", r.Input.Rel).Msg("Export failed")
			continue
		}
		log.Debug().Str("input", r.Input.Rel).Str("output", r.Result.Output).Int("edits", r.Result.Edits).Msg("Template exported")
	}

	log.Info().
		Int("templates", len(entries)).
		Int("failed", failed).
		Str("output", outputDir).
		Msg("Batch export complete")

	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(entries))
	}
	return nil
}

// openSession loads a template and applies the values, --set and --embed
// flags.
func (o *options) openSession(path string, strict bool) (*session.Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	s := session.New(string(raw))

	edits, err := o.edits()
	if err != nil {
		return nil, err
	}
	if _, err := edits.apply(s, strict); err != nil {
		return nil, err
	}
	return s, nil
}

// newRenderer builds the render client behind a cache. The returned func
// releases the database pool when one was opened.
func (o *options) newRenderer(ctx context.Context) (preview.Renderer, func()) {
	client := render.NewClient(render.Options{
		BaseURL: o.cfg.RenderURL,
		DPMM:    o.cfg.RenderDPMM,
		Width:   o.cfg.LabelWidth,
		Height:  o.cfg.LabelHeight,
		Timeout: time.Duration(o.cfg.RenderTimeoutSeconds) * time.Second,
	})

	pool := openPool(ctx, o.cfg.DatabaseURL)
	renderCache := cache.NewRenderCache(pool)
	if err := renderCache.EnsureSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to prepare render cache table")
	} else if err := renderCache.Preload(ctx, client.Key()); err != nil {
		log.Warn().Err(err).Msg("Failed to preload render cache")
	}

	closer := func() {}
	if pool != nil {
		closer = pool.Close
	}
	return cache.Wrap(client, renderCache, client.Key()), closer
}

// openPool connects to PostgreSQL. Any failure leaves the cache memory-only.
func openPool(ctx context.Context, url string) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		log.Warn().Err(err).Msg("Connect PostgreSQL failed, using memory cache")
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Warn().Err(err).Msg("Ping PostgreSQL failed, using memory cache")
		return nil
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pool
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func exportSession(s *session.Session, out string) error {
	text, err := s.Export()
	if err != nil {
		return fmt.Errorf("export %s: %w", out, err)
	}
	if err := writeFile(out, []byte(text)); err != nil {
		return err
	}
	log.Info().Str("output", out).Msg("Template exported")
	return nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func exportPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_edited" + zpl.ExportExtension
}

func previewPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_preview.png"
}

func writeFieldsTable(w io.Writer, fields []zpl.Field) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tX\tY\tVALUE\tID")
	for _, f := range fields {
		value := strconv.Quote(textutil.Truncate(f.CurrentValue, 40))
		if f.Edited() {
			value += " *"
		}
		if f.SelectedForEmbedding {
			value += " [embed]"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n", f.OrderIndex, f.Type, f.Position.X, f.Position.Y, value, f.ID)
	}
	return tw.Flush()
}

func writeFieldsYAML(w io.Writer, fields []zpl.Field) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]zpl.Field{"fields": fields}); err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	return enc.Close()
}
