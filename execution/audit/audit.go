// Package audit carries the identity of whoever triggered an order —
// the engine itself or a frontend operator — through a context.Context, so
// every exchange call and downstream log line can be attributed.
//
// The context keys here are private to this package: nothing on the HTTP
// ingress path sets them. A frontend actor's IP and key ID arrive as
// arguments to WithFrontendOrigin.
package audit

import "context"

type contextKey string

const (
	ipKey    contextKey = "audit_ip"
	actorKey contextKey = "audit_key_id"
)

// WithEngineOrigin tags ctx as an engine-initiated action (as opposed to a
// frontend operator's manual command), distinguishing automated orders from
// manual ones in audit logs.
func WithEngineOrigin(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, ipKey, "engine")
	ctx = context.WithValue(ctx, actorKey, "system")
	return ctx
}

// WithFrontendOrigin tags ctx with the requesting IP and API key identifier
// of a manual frontend command, as carried on the trade.Command that reached
// the Executor. Either may be empty for a command that bypassed the audited
// HTTP boundary (e.g. a websocket session); in that case it falls back to
// "unknown" rather than silently tagging an empty actor.
func WithFrontendOrigin(ctx context.Context, ip, keyID string) context.Context {
	if ip == "" {
		ip = "unknown"
	}
	if keyID == "" {
		keyID = "unknown"
	}
	ctx = context.WithValue(ctx, ipKey, ip)
	ctx = context.WithValue(ctx, actorKey, keyID)
	return ctx
}

// IP extracts the requestor IP from ctx, or "unknown" if absent.
func IP(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey).(string); ok {
		return ip
	}
	return "unknown"
}

// Actor extracts the API key identifier / "system" from ctx, or "unknown"
// if absent.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey).(string); ok {
		return actor
	}
	return "unknown"
}
