package runtime

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator mints active execution IDs of the form
// <protocolId>_<unixMillis>-<counter>-<random>.
// The counter separates IDs minted within the same millisecond; the random
// suffix separates processes sharing a store.
type IDGenerator struct {
	counter atomic.Uint64
}

// NewIDGenerator creates a generator with its counter at zero.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a fresh ID for protocolID started at t.
func (g *IDGenerator) Next(protocolID string, t time.Time) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s_%d-%d-%s", protocolID, t.UnixMilli(), n, uuid.NewString()[:8])
}
