package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nholm/tlsync/internal/aeon"
)

// InspectResult summarizes a timeline archive.
type InspectResult struct {
	Archive    string `json:"archive"`
	Events     int    `json:"events"`
	Entities   int    `json:"entities"`
	Types      int    `json:"types"`
	Properties int    `json:"properties"`
	Colors     int    `json:"colors"`
	EraDate    bool   `json:"era_date"`
}

func (r InspectResult) String() string {
	era := "missing"
	if r.EraDate {
		era = "present"
	}
	return fmt.Sprintf("%s: %d events, %d entities, %d types, %d properties, %d colors, %q era date %s",
		r.Archive, r.Events, r.Entities, r.Types, r.Properties, r.Colors, aeon.Era, era)
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show a summary of a timeline archive",
		Long: `Read a timeline archive and report what it contains.

Reports counts of events, entities, and template vocabulary, and whether
the calendar carries the date era the synchronization needs. Nothing is
modified.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, archivePath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	doc, err := aeon.Open(archivePath)
	if err != nil {
		return reportError(formatter, ErrCodeArchive, ExitCommandError, err)
	}

	return formatter.Success(InspectResult{
		Archive:    archivePath,
		Events:     len(doc.Events()),
		Entities:   len(doc.Entities()),
		Types:      len(doc.Types()),
		Properties: len(doc.Properties()),
		Colors:     len(doc.Colors()),
		EraDate:    doc.DateRangeGUID() != "",
	})
}
