package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lumotrade/backend-go/internal/models"
)

// QuoteSnapshot is one publish on a quotes topic.
type QuoteSnapshot struct {
	Quotes models.QuotesResponse
	Hit    bool
	Err    string
}

type quoteTopic struct {
	subs   map[chan QuoteSnapshot]struct{}
	cancel context.CancelFunc
	last   *QuoteSnapshot
}

// QuoteHub runs one poller per (symbol set, interval) and fans its snapshots
// out to every stream subscribed to it. Polls go through the TTL cache, so
// pollers and plain /quotes requests share upstream calls.
type QuoteHub struct {
	market  *MarketService
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	topics map[string]*quoteTopic
}

func NewQuoteHub(market *MarketService, timeout time.Duration, log zerolog.Logger) *QuoteHub {
	return &QuoteHub{
		market:  market,
		timeout: timeout,
		log:     log,
		topics:  make(map[string]*quoteTopic),
	}
}

// Subscribe returns a channel of snapshots for symbols. The subscription ends
// when ctx is done or the returned func is called.
func (h *QuoteHub) Subscribe(ctx context.Context, symbols []string, interval time.Duration) (<-chan QuoteSnapshot, func()) {
	key := strings.Join(symbols, ",") + "@" + interval.String()
	ch := make(chan QuoteSnapshot, 1)
	var once sync.Once

	h.mu.Lock()
	topic := h.topics[key]
	if topic == nil {
		bgCtx, cancel := context.WithCancel(context.Background())
		topic = &quoteTopic{subs: make(map[chan QuoteSnapshot]struct{}), cancel: cancel}
		h.topics[key] = topic
		go h.run(bgCtx, key, symbols, interval)
	}
	topic.subs[ch] = struct{}{}
	last := topic.last
	h.mu.Unlock()

	if last != nil {
		select {
		case ch <- *last:
		default:
		}
	}

	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			if t := h.topics[key]; t != nil {
				delete(t.subs, ch)
				if len(t.subs) == 0 {
					t.cancel()
					delete(h.topics, key)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch, unsubscribe
}

// Topics reports how many pollers are running.
func (h *QuoteHub) Topics() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}

func (h *QuoteHub) run(ctx context.Context, key string, symbols []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	poll := func() {
		reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		res, err := h.market.Quotes(reqCtx, symbols, false)
		snap := QuoteSnapshot{Quotes: res.Data, Hit: res.Cache.Hit}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.Warn().Err(err).Str("topic", key).Msg("quote poll failed")
			snap.Err = err.Error()
		}
		h.publish(key, snap)
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (h *QuoteHub) publish(key string, snap QuoteSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	topic := h.topics[key]
	if topic == nil {
		return
	}
	topic.last = &snap
	for ch := range topic.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
