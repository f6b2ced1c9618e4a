package driven

// ConfigStore provides key/value access to application configuration.
// Keys are dotted paths such as "autosuggest.enabled". Implementations
// handle persistence (e.g., TOML files) and type conversion.
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt retrieves an integer configuration value.
	// Returns 0 if key doesn't exist or isn't an integer.
	GetInt(key string) int

	// GetBool retrieves a boolean configuration value.
	// Returns false if key doesn't exist or isn't a boolean.
	GetBool(key string) bool

	// GetStringSlice retrieves a string slice configuration value.
	// Returns nil if key doesn't exist or isn't a slice.
	GetStringSlice(key string) []string

	// Keys returns every stored key, in no particular order.
	Keys() []string

	// Set stores a configuration value and persists it immediately.
	Set(key string, value any) error

	// Delete removes a key and persists immediately. Missing keys are ignored.
	Delete(key string) error

	// Save persists the current configuration to storage.
	Save() error

	// Load re-reads configuration from storage, replacing in-memory values.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
