package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/errdeck/errdeck/pkg/entry"
	"github.com/errdeck/errdeck/pkg/surface"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List persisted diagnostic entries",
	Example: `  errdeck entries
  errdeck entries --source migrate`,
	Args: cobra.NoArgs,
	RunE: runEntries,
}

func init() {
	entriesCmd.Flags().String("source", "", "Only entries with this source tag")

	rootCmd.AddCommand(entriesCmd)
}

func runEntries(cmd *cobra.Command, args []string) error {
	store, err := surface.OpenStore(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	source, _ := cmd.Flags().GetString("source")
	var entries []entry.Entry
	if source != "" {
		entries, err = store.VisibleEntries(source)
	} else {
		entries, err = store.AllEntries()
	}
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No entries")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tCODE\tSOURCE\tLOCATION\tMESSAGE")
	for _, e := range entries {
		loc := ""
		if e.File != "" {
			loc = fmt.Sprintf("%s:%d", e.File, e.Line)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Severity, e.Code, e.Source, loc, e.Message)
	}
	return w.Flush()
}
