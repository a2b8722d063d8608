package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nholm/tlsync/internal/aeon"
	"github.com/nholm/tlsync/internal/config"
	"github.com/nholm/tlsync/internal/engine"
	"github.com/nholm/tlsync/internal/model"
	"github.com/nholm/tlsync/internal/store"
)

// SyncResult is the payload reported after an import or export run.
type SyncResult struct {
	Archive    string `json:"archive"`
	Project    string `json:"project"`
	Scenes     int    `json:"scenes"`
	Chapters   int    `json:"chapters"`
	Characters int    `json:"characters"`
	Locations  int    `json:"locations"`
	Items      int    `json:"items"`
	Events     int    `json:"events"`
}

func (r SyncResult) String() string {
	return fmt.Sprintf("%s <-> %s: %d scenes, %d chapters, %d characters, %d locations, %d items, %d events",
		r.Archive, r.Project, r.Scenes, r.Chapters, r.Characters, r.Locations, r.Items, r.Events)
}

// NewImportCommand creates the import command: archive to project.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var projectPath string
	cmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Update the project from a timeline archive",
		Long: `Read the timeline archive and update the writing project from it.

Events become scenes, entities become characters, locations, and items;
matching is by title. Scenes new to the project are collected in a
"New scenes" chapter in event order. The archive itself is not modified.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], projectPath, cmd)
		},
	}
	cmd.Flags().StringVarP(&projectPath, "project", "p", "tlsync.db", "project database path")
	return cmd
}

func runImport(opts *RootOptions, archivePath, projectPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(filepath.Dir(projectPath))
	if err != nil {
		return reportError(formatter, ErrCodeConfig, ExitCommandError, err)
	}

	doc, err := aeon.Open(archivePath)
	if err != nil {
		return reportError(formatter, ErrCodeArchive, ExitCommandError, err)
	}
	formatter.VerboseLog("Read %s", archivePath)

	st, err := store.Open(projectPath)
	if err != nil {
		return reportError(formatter, ErrCodeStore, ExitCommandError, err)
	}
	defer st.Close()

	ctx := cmd.Context()
	prj, err := st.Load(ctx)
	if err != nil {
		return reportError(formatter, ErrCodeStore, ExitCommandError, err)
	}

	eng := engine.New(cfg, newLogger(opts.Verbose))
	if err := eng.Import(doc, prj); err != nil {
		return reportSyncError(formatter, err)
	}

	if err := st.Save(ctx, prj); err != nil {
		return reportError(formatter, ErrCodeStore, ExitCommandError, err)
	}

	return formatter.Success(syncResult(archivePath, projectPath, prj, doc))
}

// NewExportCommand creates the export command: project to archive.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var projectPath string
	cmd := &cobra.Command{
		Use:   "export <archive>",
		Short: "Update a timeline archive from the project",
		Long: `Read the writing project and update the timeline archive from it.

The archive must already exist; its current content is merged with the
project before writing, so timeline-only data survives. The previous
archive is kept next to it with a ` + aeon.BackupSuffix + ` suffix.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, args[0], projectPath, false, cmd)
		},
	}
	cmd.Flags().StringVarP(&projectPath, "project", "p", "tlsync.db", "project database path")
	return cmd
}

// NewMoonphaseCommand creates the moonphase command: an export that also
// maintains a moon phase property on every event.
func NewMoonphaseCommand(rootOpts *RootOptions) *cobra.Command {
	var projectPath string
	cmd := &cobra.Command{
		Use:   "moonphase <archive>",
		Short: "Export and add moon phase data to the timeline",
		Long: `Run an export and maintain a moon phase event property.

Each event with a date gets the moon phase at that date, computed with
Conway's rule, as a property value. Behaves like export otherwise.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, args[0], projectPath, true, cmd)
		},
	}
	cmd.Flags().StringVarP(&projectPath, "project", "p", "tlsync.db", "project database path")
	return cmd
}

func runExport(opts *RootOptions, archivePath, projectPath string, moonphase bool, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(filepath.Dir(projectPath))
	if err != nil {
		return reportError(formatter, ErrCodeConfig, ExitCommandError, err)
	}
	if moonphase {
		cfg.AddMoonphase = true
	}

	// Export merges into existing timeline content; a missing archive is
	// an error, not an empty starting point.
	if _, err := os.Stat(archivePath); err != nil {
		return reportError(formatter, ErrCodeArchive, ExitCommandError,
			fmt.Errorf("archive %s not found", archivePath))
	}

	doc, err := aeon.Open(archivePath)
	if err != nil {
		return reportError(formatter, ErrCodeArchive, ExitCommandError, err)
	}

	st, err := store.Open(projectPath)
	if err != nil {
		return reportError(formatter, ErrCodeStore, ExitCommandError, err)
	}
	defer st.Close()

	src, err := st.Load(cmd.Context())
	if err != nil {
		return reportError(formatter, ErrCodeStore, ExitCommandError, err)
	}

	eng := engine.New(cfg, newLogger(opts.Verbose))
	if err := eng.Export(src, doc); err != nil {
		return reportSyncError(formatter, err)
	}

	if err := aeon.Save(doc, archivePath); err != nil {
		return reportError(formatter, ErrCodeArchive, ExitCommandError, err)
	}
	formatter.VerboseLog("Wrote %s", archivePath)

	return formatter.Success(syncResult(archivePath, projectPath, src, doc))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func syncResult(archivePath, projectPath string, prj *model.Project, doc *aeon.Document) SyncResult {
	return SyncResult{
		Archive:    archivePath,
		Project:    projectPath,
		Scenes:     len(prj.Scenes),
		Chapters:   len(prj.Chapters),
		Characters: len(prj.Characters),
		Locations:  len(prj.Locations),
		Items:      len(prj.Items),
		Events:     len(doc.Events()),
	}
}

// reportError prints the error in the configured format and carries the
// exit code to main.
func reportError(f *OutputFormatter, code string, exit int, err error) error {
	_ = f.Error(code, err.Error(), nil)
	return &ExitError{Code: exit, Message: err.Error(), Err: err}
}

// reportSyncError classifies an engine or archive failure.
func reportSyncError(f *OutputFormatter, err error) error {
	switch {
	case engine.IsAmbiguityError(err):
		return reportError(f, ErrCodeAmbiguous, ExitFailure, err)
	case aeon.IsSchemaError(err):
		return reportError(f, ErrCodeSync, ExitFailure, err)
	case aeon.IsContainerError(err):
		return reportError(f, ErrCodeArchive, ExitCommandError, err)
	default:
		return reportError(f, ErrCodeGeneric, ExitFailure, err)
	}
}
