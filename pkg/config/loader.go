package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type cacheEntry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cache           sync.Map // type name -> *cacheEntry
	dotenvLoadOnce  sync.Once
	dotenvFilenames = []string{".env"}
)

// Load parses the environment into v once per type and reuses the result for
// later calls. A failed parse is cached too; call Reset to retry.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	loadDotenv()

	entryAny, _ := cache.LoadOrStore(typeName[T](), &cacheEntry{})
	entry := entryAny.(*cacheEntry)

	entry.once.Do(func() {
		var parsed T
		if err := env.Parse(&parsed); err != nil {
			entry.err = errors.Join(ErrParsingConfig, err)
			return
		}
		entry.value = parsed
	})

	if entry.err != nil {
		return entry.err
	}
	*v = entry.value.(T)
	return nil
}

// MustLoad is Load that panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Parse parses the environment into a fresh T without caching.
func Parse[T any]() (T, error) {
	loadDotenv()
	v, err := env.ParseAs[T]()
	if err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// Reset drops all cached configurations.
func Reset() {
	cache.Range(func(k, _ any) bool {
		cache.Delete(k)
		return true
	})
}

func loadDotenv() {
	dotenvLoadOnce.Do(func() {
		// A missing .env file is normal outside development.
		_ = godotenv.Load(dotenvFilenames...)
	})
}

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	return t.PkgPath() + "." + t.String()
}
