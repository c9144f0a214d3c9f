package service

import (
	"log/slog"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected post-construction to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// Broadcaster receives lifecycle events after they have been persisted.
// Implemented by ws.Hub and events.Publisher.
type Broadcaster interface {
	BroadcastMarketUpdate(evt domain.MarketEvent)
}

// Broadcasters fans one event out to several broadcasters.
type Broadcasters []Broadcaster

// BroadcastMarketUpdate forwards evt to every non-nil member.
func (bs Broadcasters) BroadcastMarketUpdate(evt domain.MarketEvent) {
	for _, b := range bs {
		if b != nil {
			b.BroadcastMarketUpdate(evt)
		}
	}
}

// Recorder receives operation outcomes for metrics. Implemented by
// metrics.Recorder.
type Recorder interface {
	ObserveOperation(op, result string)
	ObserveReleased(kind string, amount decimal.Decimal)
}

// ──────────────────────────────────────────────────────────────────────────────
// notifier: shared event/metric plumbing embedded by every service
// ──────────────────────────────────────────────────────────────────────────────

type notifier struct {
	logger      *slog.Logger
	broadcaster Broadcaster
	recorder    Recorder
}

func newNotifier(logger *slog.Logger) notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return notifier{logger: logger}
}

// SetBroadcaster injects the push feed after it is built.
func (n *notifier) SetBroadcaster(b Broadcaster) { n.broadcaster = b }

// SetRecorder injects the metrics recorder.
func (n *notifier) SetRecorder(r Recorder) { n.recorder = r }

func (n *notifier) publish(t domain.EventType, m *domain.Market, amount *decimal.Decimal) {
	if n.broadcaster == nil {
		return
	}
	evt := domain.NewMarketEvent(t, m)
	evt.Amount = amount
	n.broadcaster.BroadcastMarketUpdate(evt)
}

// observe records the outcome of op and returns err unchanged.
func (n *notifier) observe(op string, err error) error {
	if n.recorder != nil {
		n.recorder.ObserveOperation(op, resultLabel(err))
	}
	if err != nil && !domain.IsNotFound(err) && !domain.IsInvalidInput(err) && !domain.IsConflict(err) {
		n.logger.Error("operation failed", "op", op, "err", err)
	}
	return err
}

func (n *notifier) released(kind string, amount decimal.Decimal) {
	if n.recorder != nil && amount.IsPositive() {
		n.recorder.ObserveReleased(kind, amount)
	}
}

// resultLabel classifies err for the operations counter.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsInvalidInput(err):
		return "invalid"
	case domain.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
