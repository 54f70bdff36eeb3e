package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"memocal/internal/calsync"
	"memocal/internal/ics"
	"memocal/internal/model"
)

var (
	exportOut  string
	exportList bool
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write every date in a note to one calendar file",
	Long: `Export books every date mention of a note as an event and writes them
all to one calendar file. With --list it prints the calendar files in the
export directory instead.

Example:
  memocal export notes.txt --out notes.ics
  memocal export --list`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default: stdout)")
	exportCmd.Flags().BoolVar(&exportList, "list", false, "list events in the export directory")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	loc := location()
	if exportList {
		return listExports(cmd, loc)
	}

	text, err := readNote(cmd, args)
	if err != nil {
		return err
	}
	engine, err := newEngine(loc)
	if err != nil {
		return err
	}
	res, err := engine.Pass(text)
	if err != nil {
		return err
	}
	if len(res.Mentions) == 0 {
		return fmt.Errorf("no dates found")
	}

	evs := make([]model.Event, 0, len(res.Mentions))
	for _, m := range res.Mentions {
		evs = append(evs, model.Event{
			Candidate: engine.Synthesizer().FromMention(res.Text, m, nil),
			Target:    model.TargetFile,
			RawInput:  m.Text,
			Origin:    model.OriginMention,
		})
	}
	body, err := ics.EncodeCalendar(evs)
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}
	if err := os.WriteFile(exportOut, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOut, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d events (%s) to %s\n", len(evs), humanize.Bytes(uint64(len(body))), exportOut)
	return nil
}

func listExports(cmd *cobra.Command, loc *time.Location) error {
	store := calsync.NewFileStore(conf.ExportDir, loc)
	now := time.Now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	evs, err := store.List(cmd.Context(), from, from.AddDate(0, 0, conf.ListWindowDays))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(evs) == 0 {
		fmt.Fprintf(out, "no upcoming events in %s\n", store.Dir())
		return nil
	}
	for _, ev := range evs {
		c := ev.Candidate
		fmt.Fprintf(out, "%s  %-10s %s  %s\n",
			c.Start.Format("2006-01-02 15:04"), humanize.Time(c.Start), c.Title, store.Path(ev.RemoteID))
	}
	return nil
}
