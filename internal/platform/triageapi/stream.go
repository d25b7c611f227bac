package triageapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/triageboard/triageboard/internal/domain/dashboard"
)

// Named event types on the triage stream.
const (
	EventConnected         = "connected"
	EventHeartbeat         = "heartbeat"
	EventLiveStateUpdated  = "live_state.updated"
	EventQuestionGenerated = "question.generated"
	EventQuestionValidated = "question.validated"
	EventTierSummary       = "tier.summary"
	EventFinalSummary      = "final.summary"
)

// Payload keys the typed records are extracted from.
const (
	payloadKeyLiveState     = "live_state"
	payloadKeyQuestionEvent = "question_event"
	payloadKeyTierSummary   = "tier_summary"
	payloadKeyFinalSummary  = "final_summary"
)

// StreamHandlers carries one callback per semantic event type. Any handler
// may be nil. Callbacks fire on a single goroutine in the order messages
// arrive on the stream; the channel is the sole ordering authority.
type StreamHandlers struct {
	OnConnected         func()
	OnHeartbeat         func()
	OnLiveState         func(dashboard.LiveState)
	OnQuestionGenerated func(dashboard.QuestionEvent)
	OnQuestionValidated func(dashboard.QuestionEvent)
	OnTierSummary       func(dashboard.TierSummary)
	OnFinalSummary      func(dashboard.FinalSummary)
	// OnEvent is a catch-all invoked with every decoded envelope before the
	// typed handler.
	OnEvent func(dashboard.Envelope)
	// OnParseError is invoked when an inbound message cannot be decoded.
	// Parse failures never close the stream.
	OnParseError func(error)
}

// Subscription is the cancellation handle for one open stream. Cancel is
// idempotent and safe to call from within a handler callback; after it
// returns no new callback invocations begin.
type Subscription struct {
	closed atomic.Bool
	once   sync.Once
	body   io.Closer
	done   chan struct{}
}

// Cancel stops callback delivery and closes the underlying connection.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
		_ = s.body.Close()
	})
}

// Done is closed when the subscription has been cancelled or the stream
// ended on its own.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// SubscribeStream opens the per-encounter SSE channel and demultiplexes
// named events into the typed handlers. Exactly one connection is opened;
// there is no automatic reconnection — re-subscribing is an explicit caller
// decision.
func (c *Client) SubscribeStream(ctx context.Context, encounterID string, h StreamHandlers) (*Subscription, error) {
	url := c.streamURL(encounterID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	sub := &Subscription{
		body: resp.Body,
		done: make(chan struct{}),
	}

	go c.readLoop(resp.Body, sub, h, encounterID)

	return sub, nil
}

// readLoop parses the SSE wire format: "event:" and "data:" lines
// accumulate until a blank line terminates the message.
func (c *Client) readLoop(body io.ReadCloser, sub *Subscription, h StreamHandlers, encounterID string) {
	defer func() {
		// Stream ended on its own (server close, network drop). Cancel is
		// idempotent, so a prior explicit Cancel is harmless here.
		sub.Cancel()
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data []string

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if eventName != "" || len(data) > 0 {
				c.dispatch(sub, h, eventName, strings.Join(data, "\n"), encounterID)
			}
			eventName = ""
			data = data[:0]
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue // comment / keepalive
		}
		if v, ok := strings.CutPrefix(line, "event:"); ok {
			eventName = strings.TrimSpace(v)
			continue
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(v, " "))
			continue
		}
	}

	// A clean server close surfaces as a nil scanner error; anything else
	// (network drop, oversized line) killed the stream and must be reported.
	// A read error caused by our own Cancel closing the body is expected and
	// stays quiet.
	if err := scanner.Err(); err != nil && !sub.closed.Load() {
		c.reportParseError(h, fmt.Errorf("read stream for encounter %s: %w", encounterID, err))
	}
}

// dispatch decodes one complete stream message and routes it. The closed
// check runs immediately before every callback so a cancellation observed
// mid-message stops delivery.
func (c *Client) dispatch(sub *Subscription, h StreamHandlers, eventName, data, encounterID string) {
	if sub.closed.Load() {
		return
	}

	// Heartbeats carry no useful payload; do not require one.
	if eventName == EventHeartbeat {
		if h.OnHeartbeat != nil {
			h.OnHeartbeat()
		}
		return
	}

	var env dashboard.Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		c.reportParseError(h, fmt.Errorf("decode %s event envelope for encounter %s: %w", eventName, encounterID, err))
		return
	}

	if h.OnEvent != nil && !sub.closed.Load() {
		h.OnEvent(env)
	}
	if sub.closed.Load() {
		return
	}

	switch eventName {
	case EventConnected:
		if h.OnConnected != nil {
			h.OnConnected()
		}
	case EventLiveStateUpdated:
		var ls dashboard.LiveState
		if c.extract(h, env, payloadKeyLiveState, eventName, &ls) && h.OnLiveState != nil {
			h.OnLiveState(ls)
		}
	case EventQuestionGenerated:
		var ev dashboard.QuestionEvent
		if c.extract(h, env, payloadKeyQuestionEvent, eventName, &ev) && h.OnQuestionGenerated != nil {
			h.OnQuestionGenerated(ev)
		}
	case EventQuestionValidated:
		var ev dashboard.QuestionEvent
		if c.extract(h, env, payloadKeyQuestionEvent, eventName, &ev) && h.OnQuestionValidated != nil {
			h.OnQuestionValidated(ev)
		}
	case EventTierSummary:
		var ts dashboard.TierSummary
		if c.extract(h, env, payloadKeyTierSummary, eventName, &ts) && h.OnTierSummary != nil {
			h.OnTierSummary(ts)
		}
	case EventFinalSummary:
		var fs dashboard.FinalSummary
		if c.extract(h, env, payloadKeyFinalSummary, eventName, &fs) && h.OnFinalSummary != nil {
			h.OnFinalSummary(fs)
		}
	default:
		// Unknown named event: already delivered to the catch-all above.
	}
}

// extract pulls the typed record out of the envelope payload. A missing key
// is a malformed-but-parseable event and is dropped silently; a key that is
// present but does not decode is a parse error.
func (c *Client) extract(h StreamHandlers, env dashboard.Envelope, key, eventName string, dst interface{}) bool {
	raw, ok := env.Payload[key]
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.reportParseError(h, fmt.Errorf("decode %s payload %q for encounter %s: %w", eventName, key, env.EncounterID, err))
		return false
	}
	return true
}

func (c *Client) reportParseError(h StreamHandlers, err error) {
	c.logger.Warn().Err(err).Msg("triage stream parse failure")
	if h.OnParseError != nil {
		h.OnParseError(err)
	}
}
