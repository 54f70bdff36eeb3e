package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"memocal/internal/extract"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Print the date mentions and ambiguous numbers found in a note",
	Long: `Extract runs one extraction pass over a note read from a file, or from
stdin when no file is given.

Example:
  echo "明日 10時 ミーティング" | memocal extract
  memocal extract notes.txt --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	text, err := readNote(cmd, args)
	if err != nil {
		return err
	}
	engine, err := newEngine(location())
	if err != nil {
		return err
	}
	res, err := engine.Pass(text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if extractJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(out, engine, res)
	return nil
}

func printResult(w io.Writer, engine *extract.Engine, res extract.Result) {
	if res.Empty() {
		fmt.Fprintln(w, "no dates found")
		return
	}
	synth := engine.Synthesizer()
	for _, m := range res.Mentions {
		c := synth.FromMention(res.Text, m, nil)
		fmt.Fprintf(w, "mention  %-16s %s (%s)  %s\n",
			m.Text, c.Start.Format("2006-01-02 15:04"), humanize.Time(c.Start), c.Title)
	}
	for _, g := range res.Groups {
		digits := make([]string, 0, len(g.Members))
		for _, n := range g.Members {
			digits = append(digits, n.Digits)
		}
		fmt.Fprintf(w, "numbers  %-16s %s  (%s)\n", g.ContextText, strings.Join(digits, " "), g.ID)
	}
}

func readNote(cmd *cobra.Command, args []string) (string, error) {
	var (
		b   []byte
		err error
	)
	if len(args) == 1 && args[0] != "-" {
		b, err = os.ReadFile(args[0])
	} else {
		b, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	return string(b), nil
}
