// Copyright 2024-2026 Aiku AI

package livechat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DiagnosticKind classifies side-channel diagnostics from the poll loop.
type DiagnosticKind string

const (
	DiagnosticTransport DiagnosticKind = "transport"
	DiagnosticDecode    DiagnosticKind = "decode"
)

// Diagnostic is a non-fatal failure report. Poll failures do not stop the
// loop; they are delivered here instead.
type Diagnostic struct {
	Kind DiagnosticKind
	Op   Operation
	Err  error
}

// Subscription is one active listener on the publisher's state stream.
// The publisher holds a registration, not ownership: Cancel detaches the
// subscription immediately and no further events are delivered after it
// returns.
type Subscription struct {
	pub *StatePublisher
	ch  chan *ProviderState

	mu       sync.Mutex
	canceled bool
}

// Updates returns the channel of state snapshots. It is closed when the
// subscription is canceled or the publisher stops or restarts.
func (s *Subscription) Updates() <-chan *ProviderState {
	return s.ch
}

// Cancel detaches the subscription and closes its channel. Safe to call
// more than once; other subscribers are unaffected, and canceling the last
// subscriber does not stop the poll loop.
func (s *Subscription) Cancel() {
	s.pub.unsubscribe(s)
}

// subscriberBufferSize bounds how far a slow reader may lag before
// snapshots are dropped for it. Snapshots supersede each other, so
// dropping old ones for a lagging subscriber loses nothing current.
const subscriberBufferSize = 8

// StatePublisher turns the backend's pull semantics (getChatProviders)
// into a push stream of ProviderState snapshots. One poll loop feeds all
// subscribers; inbound push events feed the same stream via Push.
//
// The publisher is an explicit state machine: Uninitialized until the
// first Start, Started while a loop is live, Stopped after Stop. Subscribe
// is only valid while Started.
type StatePublisher struct {
	transport Transport
	log       zerolog.Logger

	mu       sync.Mutex
	started  bool
	stopChan chan struct{}
	subs     map[*Subscription]struct{}
	inFlight bool
	loopWG   sync.WaitGroup

	diag chan Diagnostic
}

// NewStatePublisher creates a publisher polling the given transport.
func NewStatePublisher(transport Transport, log zerolog.Logger) *StatePublisher {
	return &StatePublisher{
		transport: transport,
		log:       log.With().Str("component", "publisher").Logger(),
		subs:      make(map[*Subscription]struct{}),
		diag:      make(chan Diagnostic, 16),
	}
}

// Diagnostics returns the side channel carrying non-fatal poll failures.
// The channel is buffered; when full, new diagnostics are dropped after
// being logged.
func (p *StatePublisher) Diagnostics() <-chan Diagnostic {
	return p.diag
}

// Start begins emitting. A second Start fully tears down the previous
// loop first, closing every prior subscriber channel, so exactly one loop
// and one generation of subscribers exist at a time. Subscribers from
// before a restart observe their channel closing and must resubscribe.
//
// A zero or negative pollInterval starts the loop in push-only mode: no
// ticker, state arrives via Push and Poll only.
func (p *StatePublisher) Start(pollInterval time.Duration) {
	p.mu.Lock()
	if p.started {
		p.stopLocked()
	}
	stop := make(chan struct{})
	p.stopChan = stop
	p.started = true
	p.mu.Unlock()

	if pollInterval > 0 {
		p.loopWG.Add(1)
		go p.pollLoop(stop, pollInterval)
	}
	p.log.Debug().Dur("poll_interval", pollInterval).Msg("Publisher started")
}

// Subscribe registers a new listener. Fails with ErrNotStarted unless the
// publisher is currently started.
func (p *StatePublisher) Subscribe() (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, ErrNotStarted
	}
	sub := &Subscription{
		pub: p,
		ch:  make(chan *ProviderState, subscriberBufferSize),
	}
	p.subs[sub] = struct{}{}
	return sub, nil
}

// Started reports whether a loop generation is currently live.
func (p *StatePublisher) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Stop terminates the poll loop and closes all subscriber channels.
// Idempotent. Detaching subscribers never stops the loop; only Stop (or
// the owning client's Dispose) does.
func (p *StatePublisher) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
	p.loopWG.Wait()
}

// stopLocked tears down the current loop generation. Caller holds p.mu.
func (p *StatePublisher) stopLocked() {
	if !p.started {
		return
	}
	close(p.stopChan)
	p.stopChan = nil
	p.started = false
	for sub := range p.subs {
		sub.mu.Lock()
		if !sub.canceled {
			sub.canceled = true
			close(sub.ch)
		}
		sub.mu.Unlock()
	}
	p.subs = make(map[*Subscription]struct{})
	p.log.Debug().Msg("Publisher stopped")
}

func (p *StatePublisher) unsubscribe(sub *Subscription) {
	p.mu.Lock()
	delete(p.subs, sub)
	p.mu.Unlock()
	sub.mu.Lock()
	if !sub.canceled {
		sub.canceled = true
		close(sub.ch)
	}
	sub.mu.Unlock()
}

// pollLoop queries current state at the configured interval. A tick that
// arrives while a poll is still in flight is skipped, not queued, so a
// slow backend cannot build an unbounded backlog.
func (p *StatePublisher) pollLoop(stop chan struct{}, interval time.Duration) {
	defer p.loopWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.inFlight {
				p.mu.Unlock()
				p.log.Trace().Msg("Poll still in flight, skipping tick")
				continue
			}
			p.inFlight = true
			p.mu.Unlock()

			go func() {
				p.pollOnce(stop)
				p.mu.Lock()
				p.inFlight = false
				p.mu.Unlock()
			}()
		}
	}
}

// pollOnce performs one poll for the loop generation identified by stop.
// A result that arrives after the generation ended is discarded so a
// straddling poll never emits into a restarted publisher.
func (p *StatePublisher) pollOnce(stop chan struct{}) {
	raw, err := p.transport.Invoke(context.Background(), OpGetChatProviders, nil)
	select {
	case <-stop:
		return
	default:
	}
	if err != nil {
		p.report(Diagnostic{Kind: DiagnosticTransport, Op: OpGetChatProviders, Err: err})
		return
	}
	p.Push(raw)
}

// Poll performs one immediate getChatProviders call and broadcasts the
// decoded snapshot. Failures are reported as diagnostics.
func (p *StatePublisher) Poll(ctx context.Context) {
	raw, err := p.transport.Invoke(ctx, OpGetChatProviders, nil)
	if err != nil {
		p.report(Diagnostic{Kind: DiagnosticTransport, Op: OpGetChatProviders, Err: err})
		return
	}
	p.Push(raw)
}

// Push feeds an inbound state payload (a sendChatProvidersResult event or
// a poll result) into the broadcast stream. Decode failures become
// diagnostics and do not terminate the loop.
func (p *StatePublisher) Push(raw json.RawMessage) {
	state, err := DecodeProviderState(raw)
	if err != nil {
		p.report(Diagnostic{Kind: DiagnosticDecode, Op: OpGetChatProviders, Err: err})
		return
	}
	p.broadcast(state)
}

// broadcast delivers one snapshot to every current subscriber. Lagging
// subscribers with a full buffer are skipped for this snapshot.
func (p *StatePublisher) broadcast(state *ProviderState) {
	p.mu.Lock()
	targets := make([]*Subscription, 0, len(p.subs))
	for sub := range p.subs {
		targets = append(targets, sub)
	}
	p.mu.Unlock()

	for _, sub := range targets {
		sub.mu.Lock()
		if !sub.canceled {
			select {
			case sub.ch <- state:
			default:
				p.log.Warn().Msg("Subscriber lagging, dropping snapshot")
			}
		}
		sub.mu.Unlock()
	}
}

// report logs a diagnostic and offers it on the side channel without
// blocking the loop.
func (p *StatePublisher) report(d Diagnostic) {
	p.log.Warn().Err(d.Err).Str("kind", string(d.Kind)).Str("op", string(d.Op)).Msg("Poll failure")
	select {
	case p.diag <- d:
	default:
	}
}
