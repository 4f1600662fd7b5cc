package gormstore

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fieldpass/fieldpass/domain"
)

// DialectorOpener is an alias for a function that returns a
// gorm.Dialector for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	providers  = make(map[string]DialectorOpener)
)

// Register adds a storage driver to the registry.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = opener
}

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

// NewStorage opens the named driver, migrates the schema, and returns
// the repository.
func NewStorage(name, dsn string, skipMigrate bool) (domain.Storage, error) {
	registryMu.RLock()
	opener, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("gormstore: unknown storage provider %q", name)
	}

	db, err := gorm.Open(opener(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	repo := NewRepository(db)
	if !skipMigrate {
		if err := repo.AutoMigrate(); err != nil {
			return nil, err
		}
	}
	return repo, nil
}
