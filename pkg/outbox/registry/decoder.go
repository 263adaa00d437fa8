package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/menusam/partner-billing/pkg/enums"
)

type versionedType struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry holds versioned payload decoders for a consumer.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[versionedType]decoderFunc
}

// NewDecoderRegistry seeds version 1 decoders for every catalog event routed
// to one of dests.
func NewDecoderRegistry(dests ...Destination) *DecoderRegistry {
	reg := &DecoderRegistry{decoders: make(map[versionedType]decoderFunc)}
	for _, entry := range catalog {
		for _, dest := range dests {
			if entry.destination == dest {
				reg.Register(entry.eventType, 1, entry.decode)
			}
		}
	}
	return reg
}

// Register adds or replaces the decoder for one payload version.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder func(json.RawMessage) (any, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[versionedType{eventType, version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[versionedType{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decoder(payload)
}

// Handles reports whether any version of eventType is decodable.
func (r *DecoderRegistry) Handles(eventType enums.OutboxEventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key := range r.decoders {
		if key.eventType == eventType {
			return true
		}
	}
	return false
}
