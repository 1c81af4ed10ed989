package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	shellquote "github.com/kballard/go-shellquote"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/entry"
)

// Entry codes published by the migrator.
const (
	CodeUnmappablePin    = "ED0003"
	CodeDuplicatePin     = "ED0004"
	CodeHookFailed       = "ED0005"
	CodeMissingReference = "ED0006"
)

// Publisher receives the diagnostic entries a migration produces.
// A *sink.Sink satisfies it.
type Publisher interface {
	AddEntries(batch []entry.Entry) error
}

// Options configures a ConfigMigrator.
type Options struct {
	// BackupDir receives per-run backup subdirectories. Defaults to
	// .errdeck-backup under the project file's directory.
	BackupDir string
	// DryRun analyzes and publishes findings without writing anything.
	DryRun bool
	// PostHook is an optional shell-quoted command run in the project
	// directory after a successful migration. A failing hook is a
	// warning, not a migration failure.
	PostHook string
	// SourceTag is stamped on published entries. Defaults to "migrate".
	SourceTag string
}

// ConfigMigrator implements Migrator for legacy pin files. A nil
// Publisher is safe; findings are then only logged.
type ConfigMigrator struct {
	opts   Options
	pub    Publisher
	logger *slog.Logger
}

func NewConfigMigrator(opts Options, pub Publisher, logger *slog.Logger) *ConfigMigrator {
	if opts.SourceTag == "" {
		opts.SourceTag = "migrate"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigMigrator{
		opts:   opts,
		pub:    pub,
		logger: logger.With("component", "migrate"),
	}
}

func (m *ConfigMigrator) Migrate(ctx context.Context, project Project) (*Result, error) {
	var findings []entry.Entry
	defer func() { m.publish(findings) }()

	if _, err := os.Stat(project.File); err != nil {
		return &Result{}, errx.With(ErrProjectNotFound, " %s: %w", project.File, err)
	}
	if _, err := os.Stat(project.LegacyConfig); err != nil {
		return &Result{}, errx.With(ErrConfigNotFound, " %s: %w", project.LegacyConfig, err)
	}

	cfg, err := readLegacyConfig(project.LegacyConfig)
	if err != nil {
		return &Result{}, err
	}

	refs, warnings := m.mapPins(cfg.Pins, project.LegacyConfig)
	findings = append(findings, warnings...)

	if m.opts.DryRun {
		m.logger.Info("dry run complete", "references", len(refs), "warnings", len(warnings))
		return &Result{Success: true}, nil
	}

	backupProject, backupConfig, err := m.backup(project)
	if err != nil {
		return &Result{}, err
	}
	result := &Result{
		BackupProjectPath: backupProject,
		BackupConfigPath:  backupConfig,
	}

	refsPath := referencesPath(project.File)
	if err := writeReferences(refsPath, cfg.Project, refs); err != nil {
		return result, err
	}

	rewritten, err := rewriteProjectFile(project.File, filepath.Base(project.LegacyConfig), filepath.Base(refsPath))
	if err != nil {
		return result, err
	}
	if !rewritten {
		findings = append(findings, m.warning(CodeMissingReference, project.File, 0,
			fmt.Sprintf("project file does not reference %s; add %s manually", filepath.Base(project.LegacyConfig), filepath.Base(refsPath))))
	}

	if m.opts.PostHook != "" {
		if err := m.runHook(ctx, filepath.Dir(project.File)); err != nil {
			findings = append(findings, m.warning(CodeHookFailed, project.File, 0, err.Error()))
		}
	}

	m.logger.Info("migration complete",
		"project", project.File,
		"references", len(refs),
		"backup", filepath.Dir(backupProject))
	result.Success = true
	return result, nil
}

// mapPins converts legacy pins to references, collecting warnings for
// pins that cannot be represented and for duplicate names (first wins).
func (m *ConfigMigrator) mapPins(pins []Pin, configPath string) ([]Reference, []entry.Entry) {
	var (
		refs     []Reference
		warnings []entry.Entry
		seen     = make(map[string]int) // name -> index into pins, 1-based
	)
	for i, pin := range pins {
		line := i + 1
		if pin.Name == "" {
			warnings = append(warnings, m.warning(CodeUnmappablePin, configPath, line, "pin has no name"))
			continue
		}
		if prev, dup := seen[pin.Name]; dup {
			warnings = append(warnings, m.warning(CodeDuplicatePin, configPath, line,
				fmt.Sprintf("duplicate pin %q (first defined at pin %d); keeping the first", pin.Name, prev)))
			continue
		}
		if pin.Version == "" && pin.Path == "" {
			warnings = append(warnings, m.warning(CodeUnmappablePin, configPath, line,
				fmt.Sprintf("pin %q has neither version nor path", pin.Name)))
			continue
		}
		seen[pin.Name] = line
		refs = append(refs, Reference{Name: pin.Name, Version: pin.Version, Path: pin.Path})
	}
	return refs, warnings
}

func (m *ConfigMigrator) backup(project Project) (string, string, error) {
	dir := m.opts.BackupDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(project.File), ".errdeck-backup")
	}
	runDir := filepath.Join(dir, uuid.New().String()[:8])
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", "", errx.Wrap(ErrBackup, err)
	}

	backupProject := filepath.Join(runDir, filepath.Base(project.File))
	if err := copyFile(project.File, backupProject); err != nil {
		return "", "", errx.Wrap(ErrBackup, err)
	}
	backupConfig := filepath.Join(runDir, filepath.Base(project.LegacyConfig))
	if err := copyFile(project.LegacyConfig, backupConfig); err != nil {
		return "", "", errx.Wrap(ErrBackup, err)
	}
	return backupProject, backupConfig, nil
}

func (m *ConfigMigrator) runHook(ctx context.Context, dir string) error {
	argv, err := shellquote.Split(m.opts.PostHook)
	if err != nil {
		return errx.Wrap(ErrHookCommand, err)
	}
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return errx.With(ErrHookCommand, " %q: %v: %s", m.opts.PostHook, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (m *ConfigMigrator) warning(code, file string, line int, msg string) entry.Entry {
	e := entry.New(m.opts.SourceTag, entry.SeverityWarning, msg)
	e.Code = code
	e.File = file
	e.Line = line
	return e
}

func (m *ConfigMigrator) publish(findings []entry.Entry) {
	if m.pub == nil || len(findings) == 0 {
		for _, e := range findings {
			m.logger.Warn(e.Message, "code", e.Code, "file", e.File)
		}
		return
	}
	if err := m.pub.AddEntries(findings); err != nil {
		m.logger.Warn("publishing findings failed", "error", err)
	}
}

// referencesPath derives the new references file path from the project
// file: app.proj -> app.refs.json.
func referencesPath(projectFile string) string {
	base := strings.TrimSuffix(projectFile, filepath.Ext(projectFile))
	return base + ".refs.json"
}

func writeReferences(path, projectName string, refs []Reference) error {
	out := ReferenceFile{
		Version:    referenceFileVersion,
		Project:    projectName,
		References: refs,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errx.Wrap(ErrWriteReferences, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errx.Wrap(ErrWriteReferences, err)
	}
	return nil
}

// rewriteProjectFile replaces mentions of the legacy config file with the
// references file, line by line. Reports whether anything changed.
func rewriteProjectFile(path, legacyBase, refsBase string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errx.Wrap(ErrRewriteProject, err)
	}
	lines := strings.Split(string(data), "\n")
	changed := false
	for i, line := range lines {
		if strings.Contains(line, legacyBase) {
			lines[i] = strings.ReplaceAll(line, legacyBase, refsBase)
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return false, errx.Wrap(ErrRewriteProject, err)
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
