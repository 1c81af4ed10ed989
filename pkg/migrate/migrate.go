// Package migrate converts a project's legacy pin configuration into the
// newer project-reference format, backing up both files first and
// publishing findings as diagnostic entries.
package migrate

import "context"

// The migration capability is addressed by a stable contract name and
// version rather than a binary identifier. Hosts that look up migrators
// dynamically match on both.
const (
	ContractName    = "errdeck.migrate"
	ContractVersion = "1.0"
)

// Project identifies the two files a migration operates on.
type Project struct {
	// File is the project file that references the legacy configuration.
	File string
	// LegacyConfig is the legacy pin configuration file.
	LegacyConfig string
}

// Result reports a migration's outcome. The backup paths are empty for
// dry runs and for failures that occurred before the backup step.
type Result struct {
	Success           bool
	BackupProjectPath string
	BackupConfigPath  string
}

// Migrator is the migration contract.
type Migrator interface {
	Migrate(ctx context.Context, project Project) (*Result, error)
}
