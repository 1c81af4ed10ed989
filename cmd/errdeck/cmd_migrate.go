package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/errdeck/errdeck/pkg/dispatch"
	"github.com/errdeck/errdeck/pkg/feed"
	"github.com/errdeck/errdeck/pkg/migrate"
	"github.com/errdeck/errdeck/pkg/sink"
	"github.com/errdeck/errdeck/pkg/surface"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <project-file> <legacy-config>",
	Short: "Migrate a legacy pin configuration to project references",
	Long: `Migrate reads the legacy pin configuration, backs up both files,
writes the project-reference file and rewrites the project file to point
at it. Findings (unmappable pins, duplicates) are published to the
aggregated diagnostics list; inspect them with 'errdeck entries'.`,
	Example: `  errdeck migrate app.proj project.pins.yaml
  errdeck migrate --dry-run app.proj project.pins.yaml
  errdeck migrate --post-hook "make lock" app.proj project.pins.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().Bool("dry-run", false, "Analyze and publish findings without writing")
	migrateCmd.Flags().String("backup-dir", "", "Backup directory (default: .errdeck-backup next to the project file)")
	migrateCmd.Flags().String("post-hook", "", "Command run in the project directory after a successful migration")
	migrateCmd.Flags().BoolP("yes", "y", false, "Skip the interactive confirmation")
	migrateCmd.Flags().String("feed", "", "Forward findings to a viewer socket (see 'errdeck serve')")
	viper.BindPFlag("migrate.dry-run", migrateCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("migrate.backup-dir", migrateCmd.Flags().Lookup("backup-dir"))
	viper.BindPFlag("migrate.post-hook", migrateCmd.Flags().Lookup("post-hook"))
	viper.BindPFlag("migrate.feed", migrateCmd.Flags().Lookup("feed"))

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	projectFile, legacyConfig := args[0], args[1]
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")

	if !dryRun && !yes && !confirmMigrate(projectFile, legacyConfig) {
		return ErrAborted
	}

	store, err := surface.OpenStore(viper.GetString("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	d := dispatch.NewSerial()
	defer d.Close()

	snk, err := sink.New(store, d, sink.Config{
		SourceID:   "migrate",
		SourceName: "Config Migration",
	}, slog.Default())
	if err != nil {
		return err
	}

	if socket := viper.GetString("migrate.feed"); socket != "" {
		client, err := feed.Dial(socket)
		if err != nil {
			return err
		}
		defer client.Close()
		snk.Subscribe(client)
	}

	// Stale findings from earlier runs would mix with this run's.
	if err := snk.ClearOwn(); err != nil {
		return err
	}

	m := migrate.NewConfigMigrator(migrate.Options{
		BackupDir: viper.GetString("migrate.backup-dir"),
		DryRun:    dryRun,
		PostHook:  viper.GetString("migrate.post-hook"),
		SourceTag: snk.SourceTag(),
	}, snk, slog.Default())

	result, err := m.Migrate(cmd.Context(), migrate.Project{
		File:         projectFile,
		LegacyConfig: legacyConfig,
	})
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Println("Dry run complete; see 'errdeck entries' for findings")
		return nil
	}
	fmt.Printf("Migrated %s\n", projectFile)
	fmt.Printf("  project backup: %s\n", result.BackupProjectPath)
	fmt.Printf("  config backup:  %s\n", result.BackupConfigPath)
	return nil
}

// confirmMigrate prompts on a terminal; non-interactive runs proceed.
func confirmMigrate(projectFile, legacyConfig string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	fmt.Printf("Migrate %s using %s? This rewrites the project file. [y/N] ", projectFile, legacyConfig)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
