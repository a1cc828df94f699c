// Package frontend defines the wire contract between the Bot supervisor and
// the outside world: inbound BotEvent commands and outbound UpdateFrontend
// notifications, both JSON-tagged camelCase per spec.md §6.
package frontend

import (
	"encoding/json"
	"fmt"

	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/margin"
	"github.com/duneflow/perpengine/trade"
)

// EventKind tags an Event's variant, matching the "type" discriminant a
// decoded JSON command carries.
type EventKind string

const (
	EventAddMarket          EventKind = "addMarket"
	EventToggleMarket       EventKind = "toggleMarket"
	EventRemoveMarket       EventKind = "removeMarket"
	EventMarketComm         EventKind = "marketComm"
	EventManualUpdateMargin EventKind = "manualUpdateMargin"
	EventPauseAll           EventKind = "pauseAll"
	EventResumeAll          EventKind = "resumeAll"
	EventCloseAll           EventKind = "closeAll"
	EventGetSession         EventKind = "getSession"
)

// MarginAllocKind tags whether an AddMarket request specifies a fraction of
// equity or a fixed amount.
type MarginAllocKind string

const (
	MarginAllocFraction MarginAllocKind = "alloc"
	MarginAllocAmount   MarginAllocKind = "amount"
)

// MarginAlloc is the tagged-union JSON shape `{alloc:pct}|{amount:x}` from
// spec.md §6. Kind is derived from whichever field is present; an explicit
// "kind" field, when sent, is kept as given.
type MarginAlloc struct {
	Kind     MarginAllocKind `json:"kind" validate:"required,oneof=alloc amount"`
	Fraction float64         `json:"alloc,omitempty" validate:"required_if=Kind alloc,omitempty,gt=0,lte=1"`
	Amount   float64         `json:"amount,omitempty" validate:"required_if=Kind amount,omitempty,gt=0"`
}

// ToAllocation converts the wire shape to the margin package's
// allocation request.
func (m MarginAlloc) ToAllocation() margin.Allocation {
	if m.Kind == MarginAllocFraction {
		return margin.Allocation{Kind: margin.AllocFraction, Fraction: m.Fraction}
	}
	return margin.Allocation{Kind: margin.AllocAmount, Amount: m.Amount}
}

// UnmarshalJSON decodes the union and, when no kind is sent, sets Kind from
// the one non-zero field among alloc and amount.
func (m *MarginAlloc) UnmarshalJSON(b []byte) error {
	type wire MarginAlloc
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Kind == "" {
		if w.Fraction != 0 && w.Amount == 0 {
			w.Kind = MarginAllocFraction
		} else if w.Amount != 0 && w.Fraction == 0 {
			w.Kind = MarginAllocAmount
		}
	}
	*m = MarginAlloc(w)
	return nil
}

// TradeParams is the initial strategy/timeframe/leverage configuration an
// AddMarket request carries.
type TradeParams struct {
	Strategy  string `json:"strategy" validate:"required"`
	Leverage  int    `json:"leverage" validate:"required,gt=0"`
	TimeFrame string `json:"timeFrame" validate:"required"`
}

// IndicatorConfig is one optional warm-started indicator an AddMarket
// request may request at construction time.
type IndicatorConfig struct {
	Kind      indicator.IndicatorKind `json:"kind"`
	TimeFrame string                  `json:"timeFrame"`
}

// AddMarketInfo is the payload of an addMarket BotEvent.
type AddMarketInfo struct {
	Asset       string            `json:"asset" validate:"required"`
	MarginAlloc MarginAlloc       `json:"marginAlloc" validate:"required"`
	TradeParams TradeParams       `json:"tradeParams" validate:"required"`
	Config      []IndicatorConfig `json:"config,omitempty"`
}

// MarketCommKind mirrors signal/market control commands that travel through
// the marketComm envelope: the asset-scoped commands a Market worker accepts
//.
type MarketCommKind string

const (
	MCUpdateLeverage     MarketCommKind = "updateLeverage"
	MCUpdateStrategy     MarketCommKind = "updateStrategy"
	MCUpdateTimeFrame    MarketCommKind = "updateTimeFrame"
	MCUpdateMargin       MarketCommKind = "updateMargin"
	MCEditIndicators     MarketCommKind = "editIndicators"
	MCToggle             MarketCommKind = "toggle"
	MCPause              MarketCommKind = "pause"
	MCResume             MarketCommKind = "resume"
	MCClose              MarketCommKind = "close"
)

// MarketComm is the asset-scoped command forwarded through marketComm.
type MarketComm struct {
	Kind      MarketCommKind  `json:"kind" validate:"required"`
	Leverage  int             `json:"leverage,omitempty"`
	Strategy  string          `json:"strategy,omitempty"`
	TimeFrame string          `json:"timeFrame,omitempty"`
	Margin    float64         `json:"margin,omitempty"`
	Entries   []IndicatorEdit `json:"entries,omitempty"`

	// ActorIP / ActorKeyID identify the session that issued this command.
	// Never part of the wire payload: the Bot stamps them in from the
	// enclosing Event after decode, using the HTTP request's audit context.
	ActorIP    string `json:"-"`
	ActorKeyID string `json:"-"`
}

// IndicatorEdit is one entry of an editIndicators marketComm.
type IndicatorEdit struct {
	Kind      indicator.IndicatorKind `json:"kind"`
	TimeFrame string                  `json:"timeFrame"`
	Edit      string                  `json:"edit" validate:"oneof=add remove toggle"`
}

// ManualMarginUpdate is the `[asset, x]` pair of a manualUpdateMargin event.
type ManualMarginUpdate struct {
	Asset  string  `json:"asset" validate:"required"`
	Amount float64 `json:"amount" validate:"gt=0"`
}

// Event is the decoded form of one BotEvent JSON command. Exactly one of
// the variant-specific fields is populated, selected by Kind.
type Event struct {
	Kind EventKind `json:"type" validate:"required"`

	AddMarket    *AddMarketInfo      `json:"addMarket,omitempty"`
	Asset        string              `json:"asset,omitempty"`
	MarketComm   *MarketComm         `json:"marketComm,omitempty"`
	ManualMargin *ManualMarginUpdate `json:"manualUpdateMargin,omitempty"`

	// ActorIP / ActorKeyID identify the HTTP session this event arrived on.
	// Set by the API handler after Decode, never populated from the request
	// body itself, and carried into any MarketComm this event produces so
	// the Executor's audit trail can attribute a frontend-origin command to
	// a real session instead of "unknown".
	ActorIP    string `json:"-"`
	ActorKeyID string `json:"-"`
}

// Validate checks that Event carries the fields its Kind requires, beyond
// what struct tags alone can express (cross-field tagged-union shape).
func (e Event) Validate() error {
	switch e.Kind {
	case EventAddMarket:
		if e.AddMarket == nil {
			return fmt.Errorf("addMarket event missing addMarket payload")
		}
	case EventToggleMarket, EventRemoveMarket:
		if e.Asset == "" {
			return fmt.Errorf("%s event missing asset", e.Kind)
		}
	case EventMarketComm:
		if e.Asset == "" || e.MarketComm == nil {
			return fmt.Errorf("marketComm event missing asset or cmd")
		}
	case EventManualUpdateMargin:
		if e.ManualMargin == nil {
			return fmt.Errorf("manualUpdateMargin event missing payload")
		}
	case EventPauseAll, EventResumeAll, EventCloseAll, EventGetSession:
		// no payload required
	default:
		return fmt.Errorf("unknown event type %q", e.Kind)
	}
	return nil
}

// Decode parses raw JSON into an Event and validates its tagged-union shape.
// Callers at the HTTP boundary must treat any returned error as a 400.
func Decode(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// TradeInfoPayload pairs a destroyed position's result with its asset, the
// shape newTradeInfo carries upstream.
type TradeInfoPayload = trade.MarketInfo
