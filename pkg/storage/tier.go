package storage

// Tier is a synchronous key-value backend.
type Tier interface {
	// Get returns the value and true, or "" and false on a miss.
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// SharedTier holds the single shared credential visible to every application.
type SharedTier interface {
	Read() (string, bool)
	Write(value string) error
	Clear() error
}
