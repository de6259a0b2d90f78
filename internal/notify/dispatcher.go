package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"line-order-intake/internal/models"
	"line-order-intake/internal/shop"
)

// DefaultTimeout bounds one confirmation fan-out.
const DefaultTimeout = 10 * time.Second

// Channel is one confirmation target (email, fax, broker).
type Channel interface {
	Name() string
	// Enabled reports whether the channel applies to the shop.
	Enabled(cfg *shop.Config) bool
	Send(ctx context.Context, summary *models.OrderSummary, cfg *shop.Config) error
}

// DeliveryResult represents the result of a delivery attempt
type DeliveryResult struct {
	Channel   string    `json:"channel"` // "email", "fax", "broker"
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// ChannelStats counts outcomes for one channel.
type ChannelStats struct {
	Delivered   int       `json:"delivered"`
	Failed      int       `json:"failed"`
	LastError   string    `json:"last_error,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
}

// Status is the snapshot served by the notification status endpoint.
type Status struct {
	Status    string                  `json:"status"`
	TimeoutMs int64                   `json:"timeout_ms"`
	Channels  map[string]ChannelStats `json:"channels"`
}

// Dispatcher fans a finished order out to every enabled channel.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration

	mu    sync.RWMutex
	stats map[string]*ChannelStats
}

// NewDispatcher creates a dispatcher over the given channels. Nil channels
// are skipped so optional ones can be passed unconditionally.
func NewDispatcher(timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{timeout: timeout, stats: make(map[string]*ChannelStats)}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		d.channels = append(d.channels, ch)
		d.stats[ch.Name()] = &ChannelStats{}
	}

	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	log.Info().Strs("channels", names).Dur("timeout", timeout).Msg("Notification dispatcher initialized")
	return d
}

// SendConfirmation delivers the order to all enabled channels in parallel
// and waits for them. Failures are logged and counted, never returned.
func (d *Dispatcher) SendConfirmation(ctx context.Context, summary *models.OrderSummary, cfg *shop.Config) []DeliveryResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan DeliveryResult, len(d.channels))

	for _, ch := range d.channels {
		if !ch.Enabled(cfg) {
			log.Debug().Str("channel", ch.Name()).Str("shopId", cfg.ID).Msg("Channel not enabled for shop, skipping")
			continue
		}
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			results <- d.deliver(ctx, ch, summary, cfg)
		}(ch)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []DeliveryResult
	for result := range results {
		out = append(out, result)
		d.record(result)

		log.Debug().
			Str("orderNum", summary.OrderNum).
			Str("channel", result.Channel).
			Bool("success", result.Success).
			Int64("durationMs", result.Duration).
			Str("error", result.Error).
			Msg("Channel delivery result")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })

	log.Info().Str("orderNum", summary.OrderNum).Str("shopId", cfg.ID).Int("channels", len(out)).Msg("Order confirmation dispatched")
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, summary *models.OrderSummary, cfg *shop.Config) (result DeliveryResult) {
	start := time.Now()
	result = DeliveryResult{Channel: ch.Name(), Timestamp: start}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
			result.Duration = time.Since(start).Milliseconds()
			log.Error().Str("channel", result.Channel).Interface("panic", r).Msg("Notification channel panicked")
		}
	}()

	err := ch.Send(ctx, summary, cfg)
	result.Duration = time.Since(start).Milliseconds()

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		log.Error().
			Err(err).
			Str("channel", result.Channel).
			Str("orderNum", summary.OrderNum).
			Str("shopId", cfg.ID).
			Msg("Notification delivery failed")
	} else {
		result.Success = true
	}
	return result
}

func (d *Dispatcher) record(r DeliveryResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.stats[r.Channel]
	if !ok {
		s = &ChannelStats{}
		d.stats[r.Channel] = s
	}
	s.LastAttempt = r.Timestamp
	if r.Success {
		s.Delivered++
	} else {
		s.Failed++
		s.LastError = r.Error
	}
}

// Status returns the per-channel counters.
func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	channels := make(map[string]ChannelStats, len(d.stats))
	for name, s := range d.stats {
		channels[name] = *s
	}
	return Status{
		Status:    "running",
		TimeoutMs: d.timeout.Milliseconds(),
		Channels:  channels,
	}
}
