// Package stream implements the cross-process log tail described in
// SPEC_FULL.md's domain stack: a worker process publishes combined
// stdout/stderr lines for one task onto a goa.design/pulse Redis stream as
// it runs, and `codeforge logs -f` subscribes to that same stream instead
// of polling the log file from a process that may be on a different host.
// A nil *PulseLog is always safe to use: Publish and Destroy do nothing and
// return nil, and Subscribe returns an error, so callers that have no Redis
// configured keep working off the local file.
package stream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

// PulseLog publishes and tails per-task log lines over Pulse streams named
// "codeforge/logs/<task_id>", grounded on the teacher's Pulse sink/client
// wrapper pair (features/stream/pulse).
type PulseLog struct {
	redis  *redis.Client
	maxLen int
}

// NewPulseLog wraps an existing Redis client. maxLen bounds how many lines
// Redis retains per task stream; 0 uses Pulse's default.
func NewPulseLog(redisClient *redis.Client, maxLen int) *PulseLog {
	return &PulseLog{redis: redisClient, maxLen: maxLen}
}

func (p *PulseLog) streamName(taskID string) string {
	return fmt.Sprintf("codeforge/logs/%s", taskID)
}

// Publish appends one line to taskID's stream. Safe to call from multiple
// goroutines/processes concurrently; Redis serializes stream appends.
func (p *PulseLog) Publish(ctx context.Context, taskID, line string) error {
	if p == nil {
		return nil
	}
	var opts []streamopts.Stream
	if p.maxLen > 0 {
		opts = append(opts, streamopts.WithStreamMaxLen(p.maxLen))
	}
	s, err := streaming.NewStream(p.streamName(taskID), p.redis, opts...)
	if err != nil {
		return fmt.Errorf("stream: open %s: %w", taskID, err)
	}
	if _, err := s.Add(ctx, "line", []byte(line)); err != nil {
		return fmt.Errorf("stream: publish to %s: %w", taskID, err)
	}
	return nil
}

// Subscribe opens a dedicated consumer group on taskID's stream and returns
// a channel of decoded log lines. The channel closes when ctx is cancelled
// or the underlying sink errors out; the caller is expected to range over
// it rather than poll.
func (p *PulseLog) Subscribe(ctx context.Context, taskID string) (<-chan string, error) {
	if p == nil {
		return nil, fmt.Errorf("stream: no redis client configured")
	}
	s, err := streaming.NewStream(p.streamName(taskID), p.redis)
	if err != nil {
		return nil, fmt.Errorf("stream: open %s: %w", taskID, err)
	}
	sink, err := s.NewSink(ctx, "codeforge-cli")
	if err != nil {
		return nil, fmt.Errorf("stream: subscribe to %s: %w", taskID, err)
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer sink.Close(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sink.Subscribe():
				if !ok {
					return
				}
				select {
				case out <- string(ev.Payload):
				case <-ctx.Done():
					return
				}
				_ = sink.Ack(ctx, ev)
			}
		}
	}()
	return out, nil
}

// Destroy removes taskID's stream entirely, for use by cleanup once a
// task's log file has been archived or discarded.
func (p *PulseLog) Destroy(ctx context.Context, taskID string) error {
	if p == nil {
		return nil
	}
	s, err := streaming.NewStream(p.streamName(taskID), p.redis)
	if err != nil {
		return fmt.Errorf("stream: open %s: %w", taskID, err)
	}
	return s.Destroy(ctx)
}
