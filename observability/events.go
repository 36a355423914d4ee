package observability

import (
	"log/slog"
	"math/big"

	"github.com/samparke/cross-chain-rebase-token/bridge"
	"github.com/samparke/cross-chain-rebase-token/observability/metrics"
	"github.com/samparke/cross-chain-rebase-token/token"
)

// Recorder fans ledger and bridge events out to structured logs and the
// Prometheus registry. It satisfies both token.Emitter and bridge.Emitter.
type Recorder struct {
	logger  *slog.Logger
	metrics *metrics.TokenMetrics
}

// NewRecorder builds a Recorder over the supplied logger. A nil logger falls
// back to the process default.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, metrics: metrics.Token()}
}

// Emit routes a single event to the log stream and the matching counters.
// Unknown event types are logged at debug level so new events never fail
// silently during development.
func (r *Recorder) Emit(event interface{}) {
	if r == nil {
		return
	}
	switch e := event.(type) {
	case token.MintedEvent:
		r.metrics.ObserveMint()
		r.logger.Info("token minted",
			slog.String("holder", e.Holder.String()),
			slog.String("amount", bigString(e.Amount)),
			slog.String("rate", bigString(e.Rate)),
		)
	case token.BurnedEvent:
		r.metrics.ObserveBurn()
		r.logger.Info("token burned",
			slog.String("holder", e.Holder.String()),
			slog.String("amount", bigString(e.Amount)),
		)
	case token.TransferredEvent:
		r.metrics.ObserveTransfer()
		r.logger.Info("token transferred",
			slog.String("sender", e.Sender.String()),
			slog.String("recipient", e.Recipient.String()),
			slog.String("amount", bigString(e.Amount)),
		)
	case token.InterestRealizedEvent:
		r.metrics.ObserveInterestRealized()
		r.logger.Debug("interest realized",
			slog.String("holder", e.Holder.String()),
			slog.String("delta", bigString(e.Delta)),
		)
	case token.RateChangedEvent:
		r.metrics.SetGlobalRate(bigFloat(e.NewRate))
		r.logger.Info("global rate changed",
			slog.String("old", bigString(e.OldRate)),
			slog.String("new", bigString(e.NewRate)),
		)
	case bridge.SentEvent:
		r.metrics.ObserveBridgeSent(e.DestDomain)
		r.logger.Info("bridge message sent",
			slog.String("message_id", e.MessageID),
			slog.Uint64("destination", e.DestDomain),
			slog.String("sender", e.Sender.String()),
			slog.String("recipient", e.Recipient.String()),
			slog.String("amount", bigString(e.Amount)),
			slog.String("rate", bigString(e.Rate)),
			slog.String("handle", e.Handle),
		)
	case bridge.ReceivedEvent:
		r.metrics.ObserveBridgeReceived(e.OriginDomain)
		r.logger.Info("bridge message applied",
			slog.String("message_id", e.MessageID),
			slog.Uint64("origin", e.OriginDomain),
			slog.String("recipient", e.Recipient.String()),
			slog.String("amount", bigString(e.Amount)),
			slog.String("rate", bigString(e.Rate)),
		)
	case bridge.DuplicateEvent:
		r.metrics.ObserveBridgeDuplicate(e.OriginDomain)
		r.logger.Warn("duplicate bridge delivery skipped",
			slog.String("message_id", e.MessageID),
			slog.Uint64("origin", e.OriginDomain),
		)
	case bridge.SendRolledBackEvent:
		r.metrics.ObserveBridgeRollback()
		r.logger.Warn("bridge send rolled back",
			slog.Uint64("destination", e.DestDomain),
			slog.String("sender", e.Sender.String()),
			slog.String("amount", bigString(e.Amount)),
		)
	default:
		r.logger.Debug("unhandled event", slog.Any("event", event))
	}
}

func bigString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

func bigFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	return f
}
