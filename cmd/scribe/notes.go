package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/medical-scribe-server/internal/app"
	"github.com/medical-scribe-server/internal/notestore"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List, export and import the clinical note history",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored notes, newest first",
	RunE:  runNotesList,
}

var notesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored note as JSON or CSV",
	Long: `Export writes the whole note history. JSON exports can be re-imported;
CSV exports carry one summary row per note with a UTF-8 BOM for
spreadsheet tools. --compress wraps the output in zstd.`,
	RunE: runNotesExport,
}

var notesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import notes from a JSON export or a single note file",
	Long: `Import reads a JSON export document, optionally zstd-compressed, or a
single clinical note downloaded from the web UI. Notes whose ID already
exists are skipped.`,
	RunE: runNotesImport,
}

func init() {
	notesListCmd.Flags().Int("limit", 20, "maximum number of notes")
	notesListCmd.Flags().Int("offset", 0, "number of notes to skip")
	notesListCmd.Flags().Bool("json", false, "output notes as JSON")

	notesExportCmd.Flags().String("format", "json", "export format: json or csv")
	notesExportCmd.Flags().Bool("compress", false, "zstd-compress the output")
	notesExportCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")

	notesImportCmd.Flags().StringP("file", "f", "", "export or note file, - for stdin")
	_ = notesImportCmd.MarkFlagRequired("file")

	notesCmd.AddCommand(notesListCmd, notesExportCmd, notesImportCmd)
	rootCmd.AddCommand(notesCmd)
}

// openStore builds only the note store from configuration
func openStore(ctx context.Context) (notestore.Store, func(), error) {
	components, err := app.Build(ctx, configManager.GetConfig(), logger, app.Options{SkipLLM: true, SkipUsage: true})
	if err != nil {
		return nil, nil, err
	}
	if components.Store == nil {
		components.Close()
		return nil, nil, fmt.Errorf("note storage is disabled (storage.driver is none)")
	}
	return components.Store, func() { components.Close() }, nil
}

func runNotesList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := store.List(ctx, limit, offset)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCHIEF COMPLAINT\tDIAGNOSIS")
	for _, r := range records {
		diagnosis, _ := r.Note.Diagnosis()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Note.ChiefComplaint(), diagnosis)
	}
	return tw.Flush()
}

func runNotesExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	compress, _ := cmd.Flags().GetBool("compress")
	output, _ := cmd.Flags().GetString("output")

	if format != "json" && format != "csv" {
		return fmt.Errorf("format must be json or csv, got %q", format)
	}

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var dst io.Writer = cmd.OutOrStdout()
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer f.Close()
		dst = f
	}

	var zw io.WriteCloser
	if compress {
		zw, err = notestore.NewCompressedWriter(dst)
		if err != nil {
			return err
		}
		dst = zw
	}

	if format == "csv" {
		err = store.ExportCSV(ctx, dst)
	} else {
		err = store.ExportJSON(ctx, dst)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish compressed export: %w", err)
		}
	}

	if output != "-" {
		logger.WithField("path", output).Info("Exported notes")
	}
	return nil
}

func runNotesImport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	var src io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		src = f
	}

	r, err := notestore.OpenArchive(src)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	imported, skipped, err := store.ImportJSON(ctx, r)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d note(s), skipped %d\n", imported, skipped)
	return nil
}
