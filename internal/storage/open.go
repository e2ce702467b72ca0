package storage

import "fmt"

// Backend names a Store implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendFile     Backend = "file"
	BackendMemory   Backend = "memory"
)

// IsValid reports whether b is a known backend.
func (b Backend) IsValid() bool {
	switch b {
	case BackendSQLite, BackendPostgres, BackendFile, BackendMemory:
		return true
	default:
		return false
	}
}

// Options selects and configures a backend.
type Options struct {
	Backend     Backend
	SQLitePath  string
	PostgresDSN string
	FilePath    string
}

// Open creates the Store described by opts.
func Open(opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case BackendSQLite:
		s, err = NewSQLite(opts.SQLitePath)
	case BackendPostgres:
		s, err = NewPostgres(opts.PostgresDSN)
	case BackendFile:
		s, err = NewFile(opts.FilePath)
	case BackendMemory:
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
