package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	// GlobalStream carries every engine event for consumers that want the
	// full feed
	GlobalStream = "engine.events"

	eventBufferSize = 1000
)

// StreamPublisher publishes engine events to Redis Streams: the global
// engine.events stream plus a per-type stream (engine.events.scan:completed
// and friends).
//
// Delivery is asynchronous through a buffered channel so the scan path never
// waits on redis; when the buffer is full the event is dropped.
type StreamPublisher struct {
	client *redis.Client
	buffer chan models.Event
}

// NewStreamPublisher creates a stream publisher backed by the given client
func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		buffer: make(chan models.Event, eventBufferSize),
	}
}

// Deliver queues an event for publication (events.Subscriber).
// Non-blocking: a full buffer drops the event.
func (p *StreamPublisher) Deliver(event models.Event) {
	select {
	case p.buffer <- event:
	default:
		fmt.Println("⚠️  Stream publisher buffer full, dropping event")
	}
}

// Run drains the buffer until the context is cancelled
func (p *StreamPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.buffer:
			if err := p.publish(ctx, event); err != nil {
				fmt.Printf("stream publish error: %v\n", err)
			}
		}
	}
}

// publish writes one event to the global and per-type streams
func (p *StreamPublisher) publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	values := map[string]interface{}{
		"event": string(payload),
	}

	if _, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: GlobalStream,
		Values: values,
	}).Result(); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", GlobalStream, err)
	}

	typeStream := fmt.Sprintf("%s.%s", GlobalStream, event.Type)
	if _, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: typeStream,
		Values: values,
	}).Result(); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", typeStream, err)
	}

	return nil
}
