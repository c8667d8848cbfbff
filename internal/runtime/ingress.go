package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flowdeck/flowdeck/internal/streaming"
	"github.com/flowdeck/flowdeck/pkg/schema"
)

const (
	ingressPath       = "/v1/events"
	ingressMinBackoff = time.Second
	ingressMaxBackoff = 30 * time.Second
)

// EventIngress is the inbound half of the runtime boundary: a long-lived SSE
// subscription to the runtime's event endpoint. Each frame carries a
// StreamEvent which is published into the hub for the dispatcher and the
// notification forwarder. The connection is re-established with exponential
// backoff; events emitted while disconnected are lost, which is acceptable
// because node state converges on the next event per node.
type EventIngress struct {
	baseURL string
	hub     streaming.EventHub
	client  *http.Client
	logger  *slog.Logger
}

// NewEventIngress creates an ingress for the runtime at baseURL. The HTTP
// client carries no timeout: the stream is meant to stay open and is torn
// down through the context.
func NewEventIngress(baseURL string, hub streaming.EventHub, logger *slog.Logger) *EventIngress {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventIngress{
		baseURL: baseURL,
		hub:     hub,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Run consumes the event stream until ctx is cancelled, reconnecting after
// connection failures and stream ends.
func (in *EventIngress) Run(ctx context.Context) error {
	backoff := ingressMinBackoff
	for {
		delivered, err := in.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			in.logger.Warn("event stream interrupted", "error", err)
		}
		if delivered > 0 {
			backoff = ingressMinBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < ingressMaxBackoff {
			backoff *= 2
			if backoff > ingressMaxBackoff {
				backoff = ingressMaxBackoff
			}
		}
	}
}

// consume opens one SSE connection and publishes every decoded event. It
// returns the number of events delivered and the error that ended the
// stream, nil when the runtime closed it cleanly.
func (in *EventIngress) consume(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.baseURL+ingressPath, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := in.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, schema.NewErrorf(schema.ErrCodeInvocation,
			"event stream returned status %d", resp.StatusCode)
	}

	delivered := 0
	var data strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				if in.publish(ctx, data.String()) {
					delivered++
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event: and id: fields are redundant here; the payload
			// carries the event type.
		}
	}
	return delivered, scanner.Err()
}

// publish decodes one SSE data block and hands it to the hub. Malformed
// frames are logged and dropped so one bad event cannot end the stream.
func (in *EventIngress) publish(ctx context.Context, data string) bool {
	var ev streaming.StreamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		in.logger.Warn("dropping malformed stream frame", "error", err)
		return false
	}
	if ev.EventType == "" {
		in.logger.Warn("dropping stream frame without event type")
		return false
	}
	if err := in.hub.Publish(ctx, ev); err != nil {
		return false
	}
	return true
}
