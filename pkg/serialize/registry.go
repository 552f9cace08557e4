package serialize

import (
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Codec{}
)

// Register makes a codec available by name. Codec packages call this from
// init(); registering the same name twice is a programming error.
func Register(codec Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[codec.Name()]; dup {
		panic("codec registered twice: " + codec.Name())
	}

	registry[codec.Name()] = codec
}

// Lookup resolves a codec by name.
func Lookup(name string) (Codec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	codec, ok := registry[name]
	return codec, ok
}

// Names lists the registered codecs in lexical order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
