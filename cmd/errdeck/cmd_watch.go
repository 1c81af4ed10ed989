package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/errdeck/errdeck/pkg/dispatch"
	"github.com/errdeck/errdeck/pkg/feed"
	"github.com/errdeck/errdeck/pkg/migrate"
	"github.com/errdeck/errdeck/pkg/sink"
	"github.com/errdeck/errdeck/pkg/surface"
	"github.com/errdeck/errdeck/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and analyze legacy pin files as they change",
	Long: `Watch runs dry-run migrations whenever a legacy pin file in the
directory is created or modified, publishing findings to the aggregated
diagnostics list. It never rewrites files; run 'errdeck migrate' for that.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("log", "", "Append notifications to a JSONL file")
	viper.BindPFlag("watch.log", watchCmd.Flags().Lookup("log"))

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]

	store, err := surface.OpenStore(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	d := dispatch.NewSerial()
	defer d.Close()

	snk, err := sink.New(store, d, sink.Config{
		SourceID:   "watch",
		SourceName: "Pin File Watcher",
	}, slog.Default())
	if err != nil {
		return err
	}

	snk.Subscribe(newPrintNotifier(cmd.OutOrStdout()))
	if logPath := viper.GetString("watch.log"); logPath != "" {
		jw, err := feed.NewJSONLWriter(logPath)
		if err != nil {
			return err
		}
		defer jw.Close()
		snk.Subscribe(jw)
	}

	m := migrate.NewConfigMigrator(migrate.Options{
		DryRun:    true,
		SourceTag: snk.SourceTag(),
	}, snk, slog.Default())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := watch.New(dir, m, slog.Default())
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
