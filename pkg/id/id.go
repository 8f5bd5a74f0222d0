// Package id issues ULIDs for runs, trades and orders.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator yields monotonic ULIDs. It is safe for concurrent use.
type Generator struct {
	mu    sync.Mutex
	mono  io.Reader
	clock func() time.Time
}

// NewGenerator seeds a generator. A zero seed draws one from crypto/rand;
// a nil clock uses wall time.
func NewGenerator(seed int64, clock func() time.Time) *Generator {
	if seed == 0 {
		_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Generator{
		mono:  ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		clock: clock,
	}
}

// Next returns the next ULID string.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.clock().UTC()), g.mono)
	if err != nil {
		// Only reachable if the clock runs backwards past the entropy window.
		panic(err)
	}
	return id.String()
}

var std = NewGenerator(0, nil)

// New returns a ULID from the process-wide generator.
func New() string { return std.Next() }

// Time extracts the timestamp encoded in a ULID string.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()).UTC(), nil
}
