// Package id provides centralized ID generation for the platform.
//
// All identifiers are ULIDs with a short type prefix:
//   - Lexicographic sortability: audit history and container listings sort by creation time
//   - Prefixed types: evt_*, ctr_*, req_*, peer_* are readable in logs and snapshots
//   - Type safety: separate string types prevent mixing container and event IDs
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventID identifies an audit event
type EventID string

// ContainerID identifies an agent container started by this platform
type ContainerID string

// RequestID identifies an inbound API request
type RequestID string

// PeerID identifies a connected peer platform when the peer does not report its own ID
type PeerID string

const (
	EventPrefix     = "evt"
	ContainerPrefix = "ctr"
	RequestPrefix   = "req"
	PeerPrefix      = "peer"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// entropy, so IDs minted within the same millisecond still sort in order.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewEventID generates a new audit event ID
func NewEventID() EventID {
	return EventID(Default().GenerateWithPrefix(EventPrefix))
}

// NewContainerID generates a new container ID
func NewContainerID() ContainerID {
	return ContainerID(Default().GenerateWithPrefix(ContainerPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewPeerID generates a new peer ID
func NewPeerID() PeerID {
	return PeerID(Default().GenerateWithPrefix(PeerPrefix))
}

func (id EventID) String() string     { return string(id) }
func (id ContainerID) String() string { return string(id) }
func (id RequestID) String() string   { return string(id) }
func (id PeerID) String() string      { return string(id) }

// IsValid checks if an ID string is a valid ULID, with or without a type prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a type prefix if present
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the creation time from an ID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
