package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/errdeck/errdeck/pkg/dispatch"
	"github.com/errdeck/errdeck/pkg/feed"
	"github.com/errdeck/errdeck/pkg/sink"
	"github.com/errdeck/errdeck/pkg/surface"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the viewer socket, applying incoming batches to the surface",
	Long: `Serve listens on a unix socket for entry batches from other errdeck
processes (see the migrate --feed flag) and applies them to the local
surface database, printing them as they arrive.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("socket", defaultSocketPath(), "Unix socket path to listen on")
	viper.BindPFlag("serve.socket", serveCmd.Flags().Lookup("socket"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := surface.OpenStore(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	d := dispatch.NewSerial()
	defer d.Close()

	snk, err := sink.New(store, d, sink.Config{
		SourceID:   "feed",
		SourceName: "Feed Viewer",
	}, slog.Default())
	if err != nil {
		return err
	}
	snk.Subscribe(newPrintNotifier(cmd.OutOrStdout()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raise := func() error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "* raise requested")
		return err
	}
	srv := feed.NewServer(snk, raise, slog.Default())
	return srv.Serve(ctx, viper.GetString("serve.socket"))
}
