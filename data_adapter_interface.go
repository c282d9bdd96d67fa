package statsig

// Key used by the SDK to persist and look up the full ruleset payload.
const CONFIG_SPECS_KEY = "statsig.cache"

// IDataAdapter is an interface for plugging in an external datastore
// (redis, a local file, etc.) as a ruleset source and write-through cache.
// Implementations must be safe for concurrent use; panics are contained by
// the SDK and reported as data adapter errors.
type IDataAdapter interface {
	Initialize()
	Get(key string) string
	Set(key string, value string)
	Shutdown()

	// ShouldBeUsedForQueryingUpdates makes the background sync poll this
	// adapter for the given key instead of the network.
	ShouldBeUsedForQueryingUpdates(key string) bool
}
