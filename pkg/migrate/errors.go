package migrate

import "errors"

var (
	ErrProjectNotFound = errors.New("migrate: project file not found")
	ErrConfigNotFound  = errors.New("migrate: legacy config not found")
	ErrParseConfig     = errors.New("migrate: parse legacy config")
	ErrBackup          = errors.New("migrate: back up file")
	ErrWriteReferences = errors.New("migrate: write references file")
	ErrRewriteProject  = errors.New("migrate: rewrite project file")
	ErrHookCommand     = errors.New("migrate: post-migration hook")
)
