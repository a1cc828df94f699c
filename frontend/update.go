package frontend

import (
	"github.com/duneflow/perpengine/indicator"
	"github.com/duneflow/perpengine/trade"
)

// UpdateKind tags an Update's variant.
type UpdateKind string

const (
	UpdateConfirmMarket      UpdateKind = "confirmMarket"
	UpdatePrice              UpdateKind = "updatePrice"
	UpdateNewTradeInfo       UpdateKind = "newTradeInfo"
	UpdateTotalMargin        UpdateKind = "updateTotalMargin"
	UpdateMarketMargin       UpdateKind = "updateMarketMargin"
	UpdateIndicatorValues    UpdateKind = "updateIndicatorValues"
	UpdateMarketInfoEdit     UpdateKind = "marketInfoEdit"
	UpdateUserError          UpdateKind = "userError"
	UpdateLoadSession        UpdateKind = "loadSession"
)

// PriceUpdate is the payload of an updatePrice Update: a new close for an
// asset, emitted only when the close actually changes (see
// §4.4's candle ingester).
type PriceUpdate struct {
	Asset string  `json:"asset"`
	Price float64 `json:"price"`
}

// MarketMarginUpdate pairs an asset with its newly-synced reservation.
type MarketMarginUpdate struct {
	Asset  string  `json:"asset"`
	Margin float64 `json:"margin"`
}

// IndicatorData is the payload of updateIndicatorValues: the full indicator
// snapshot for one asset, keyed by IndexId per the Signal Engine's Snapshot
// shape.
type IndicatorData struct {
	Asset  string                                  `json:"asset"`
	Values map[indicator.IndexId]indicator.Value `json:"values"`
}

// EditMarketInfoKind tags which field of a live market an edit-notification
// describes, mirroring the original's EditMarketInfo{Lev, Strategy,
// Indicator} enum.
type EditMarketInfoKind string

const (
	EditInfoLeverage  EditMarketInfoKind = "lev"
	EditInfoStrategy  EditMarketInfoKind = "strategy"
	EditInfoIndicator EditMarketInfoKind = "indicator"
)

// EditMarketInfo describes one mutation applied to a live market, carried by
// the marketInfoEdit Update — a previously wire-only variant with no
// producer in the original, now emitted by the Market worker on
// UpdateLeverage, UpdateStrategy, and EditIndicators.
type EditMarketInfo struct {
	Kind       EditMarketInfoKind      `json:"kind"`
	Leverage   int                     `json:"leverage,omitempty"`
	Strategy   string                  `json:"strategy,omitempty"`
	Indicators []indicator.IndexId     `json:"indicators,omitempty"`
}

// MarketInfoEdit pairs an asset with the EditMarketInfo describing what
// changed on it.
type MarketInfoEdit struct {
	Asset string         `json:"asset"`
	Edit  EditMarketInfo `json:"edit"`
}

// SessionEntry is one asset's snapshot within a loadSession Update, the
// shape the Bot's session map is flattened to for a GetSession reply or an
// initial connection replay.
type SessionEntry struct {
	Asset    string             `json:"asset"`
	Margin   float64            `json:"margin"`
	Price    float64            `json:"price,omitempty"`
	History  []trade.Info       `json:"history,omitempty"`
}

// Update is the outbound form of one UpdateFrontend message. Exactly one of
// the variant-specific fields is populated, selected by Kind.
type Update struct {
	Kind UpdateKind `json:"type"`

	Asset          string              `json:"asset,omitempty"`
	Price          *PriceUpdate        `json:"price,omitempty"`
	TradeInfo      *trade.MarketInfo   `json:"tradeInfo,omitempty"`
	TotalMargin    float64             `json:"totalMargin,omitempty"`
	MarketMargin   *MarketMarginUpdate `json:"marketMargin,omitempty"`
	IndicatorData  *IndicatorData      `json:"indicatorData,omitempty"`
	MarketInfoEdit *MarketInfoEdit     `json:"marketInfoEdit,omitempty"`
	UserError      string              `json:"userError,omitempty"`
	Session        []SessionEntry      `json:"session,omitempty"`
}

// ConfirmMarket builds the Update sent once a Market worker has finished
// its startup sequence (InitMarket) and is ready to trade.
func ConfirmMarket(asset string) Update {
	return Update{Kind: UpdateConfirmMarket, Asset: asset}
}

// NewPriceUpdate builds an updatePrice Update.
func NewPriceUpdate(asset string, price float64) Update {
	return Update{Kind: UpdatePrice, Asset: asset, Price: &PriceUpdate{Asset: asset, Price: price}}
}

// NewTradeInfo builds a newTradeInfo Update.
func NewTradeInfo(asset string, info trade.Info) Update {
	return Update{Kind: UpdateNewTradeInfo, Asset: asset, TradeInfo: &trade.MarketInfo{Asset: asset, Info: info}}
}

// NewTotalMargin builds an updateTotalMargin Update.
func NewTotalMargin(free float64) Update {
	return Update{Kind: UpdateTotalMargin, TotalMargin: free}
}

// NewMarketMargin builds an updateMarketMargin Update.
func NewMarketMargin(asset string, margin float64) Update {
	return Update{Kind: UpdateMarketMargin, Asset: asset, MarketMargin: &MarketMarginUpdate{Asset: asset, Margin: margin}}
}

// NewIndicatorValues builds an updateIndicatorValues Update.
func NewIndicatorValues(asset string, values map[indicator.IndexId]indicator.Value) Update {
	return Update{Kind: UpdateIndicatorValues, Asset: asset, IndicatorData: &IndicatorData{Asset: asset, Values: values}}
}

// NewMarketInfoEdit builds a marketInfoEdit Update.
func NewMarketInfoEdit(asset string, edit EditMarketInfo) Update {
	return Update{Kind: UpdateMarketInfoEdit, Asset: asset, MarketInfoEdit: &MarketInfoEdit{Asset: asset, Edit: edit}}
}

// NewUserError builds a userError Update.
func NewUserError(msg string) Update {
	return Update{Kind: UpdateUserError, UserError: msg}
}

// NewLoadSession builds a loadSession Update from a session snapshot.
func NewLoadSession(entries []SessionEntry) Update {
	return Update{Kind: UpdateLoadSession, Session: entries}
}
