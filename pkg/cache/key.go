package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Keyer derives deterministic cache keys for function results. The key is
// the qualified function identity plus a stable hash of its bound
// arguments, so the same call always maps to the same entry.
type Keyer struct {
	// Prefix partitions function-result keys, defaulting to "fn".
	Prefix string
}

// Key derives the cache key for a call with named arguments. Argument
// order does not matter: the JSON encoding sorts map keys, so
// {a:1, b:2} and {b:2, a:1} hash identically.
func (k Keyer) Key(function string, args map[string]any) string {
	return k.hashKey(function, args)
}

// KeyArgs derives the cache key for a call with positional arguments.
func (k Keyer) KeyArgs(function string, args ...any) string {
	return k.hashKey(function, args)
}

func (k Keyer) hashKey(function string, args any) string {
	prefix := k.Prefix
	if prefix == "" {
		prefix = "fn"
	}
	payload, err := json.Marshal(args)
	if err != nil {
		// Unencodable arguments still need a usable key; fall back to
		// the formatted value.
		payload = []byte(fmt.Sprintf("%+v", args))
	}
	return fmt.Sprintf("%s:%s:%016x", prefix, function, xxhash.Sum64(payload))
}
