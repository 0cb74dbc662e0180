// Package cache keeps parsed programs keyed by a hash of their source so
// repeated runs of the same script skip lexing and parsing.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/sprite"
)

// ProgramCache implements sprite.ProgramCache. Each entry costs one unit,
// so MaxCost bounds the number of cached programs.
type ProgramCache struct {
	cache *ristretto.Cache
}

var _ sprite.ProgramCache = (*ProgramCache)(nil)

func New(maxPrograms int) (*ProgramCache, error) {
	if maxPrograms <= 0 {
		return nil, fmt.Errorf("cache: max programs must be positive, got %d", maxPrograms)
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxPrograms * 10),
		MaxCost:     int64(maxPrograms),
		BufferItems: 64,
		// Entries are charged only their explicit cost of one.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &ProgramCache{cache: c}, nil
}

func key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

func (pc *ProgramCache) Get(source string) (*sprite.Program, bool) {
	v, ok := pc.cache.Get(key(source))
	if !ok {
		return nil, false
	}
	program, ok := v.(*sprite.Program)
	return program, ok
}

// Set admission is asynchronous; call Wait to observe the entry.
func (pc *ProgramCache) Set(source string, program *sprite.Program) {
	pc.cache.Set(key(source), program, 1)
}

func (pc *ProgramCache) Wait() {
	pc.cache.Wait()
}

func (pc *ProgramCache) Clear() {
	pc.cache.Clear()
}

func (pc *ProgramCache) Close() {
	pc.cache.Close()
}
