// Package perrors provides the engine's error taxonomy.
//
// Every error kind named by the control-plane specification has a concrete
// type here so callers can discriminate with errors.As instead of matching
// on strings.
package perrors

import "fmt"

// AssetNotFoundError is returned when a symbol is not present in the known
// markets set.
type AssetNotFoundError struct {
	Asset string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("asset not found: %s", e.Asset)
}

// InvalidMarginAmountError is returned when a margin request resolves to a
// non-positive amount.
type InvalidMarginAmountError struct {
	Asset string
}

func (e *InvalidMarginAmountError) Error() string {
	return fmt.Sprintf("invalid margin amount requested for %s", e.Asset)
}

// InsufficientFreeMarginError is returned when a margin request exceeds the
// currently free capital. Free carries the free amount at rejection time.
type InsufficientFreeMarginError struct {
	Asset string
	Free  float64
}

func (e *InsufficientFreeMarginError) Error() string {
	return fmt.Sprintf("insufficient free margin for %s: free=%.8f", e.Asset, e.Free)
}

// GenericParseError wraps a field-parse failure on streamed exchange data.
type GenericParseError struct {
	Msg string
}

func (e *GenericParseError) Error() string { return "parse: " + e.Msg }

// TransportError wraps a network/RPC failure talking to the exchange.
type TransportError struct {
	Msg string
}

func (e *TransportError) Error() string { return "transport: " + e.Msg }

// ExchangeRejectError wraps an exchange-side rejection of a request.
type ExchangeRejectError struct {
	Msg string
}

func (e *ExchangeRejectError) Error() string { return "exchange reject: " + e.Msg }

// CustomError is a catch-all for conditions with no dedicated kind.
type CustomError struct {
	Msg string
}

func (e *CustomError) Error() string { return e.Msg }
