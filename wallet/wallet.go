// Package wallet loads the credential pair the engine authenticates to the
// exchange with, and exposes the narrow Reader seam the rest of the engine
// consumes it through.
//
// .env file selection follows config.Load()'s own godotenv convention; the
// secret/address pair generalizes a broker username/password shape into the
// wallet.rs-style secret/address pair (GetUserFees, UserFills, GetUserMargin).
package wallet

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/duneflow/perpengine/exchange"
)

// Credentials is the loaded secret/address pair. PrivateKey is never logged
// or serialized; Address is the public identifier passed to exchange reads.
type Credentials struct {
	PrivateKey string
	Address    string
}

// Reader is the narrow margin-only view of a wallet: only the derived margin
// figure, never the concrete credential shape. Wallet satisfies it; nothing
// else in the module names it, and the margin book takes a Wallet through
// margin.EquitySource, which has the same method.
type Reader interface {
	UserMargin(ctx context.Context) (float64, error)
}

// Wallet implements Reader against an exchange.Client, matching the
// original's GetUserMargin: fetch UserState for Address, then
// exchange.UserMargin folds it into one equity figure.
type Wallet struct {
	creds  Credentials
	client exchange.Client
}

// New builds a Wallet for creds against client.
func New(creds Credentials, client exchange.Client) *Wallet {
	return &Wallet{creds: creds, client: client}
}

// UserMargin fetches the account snapshot and folds it into one equity
// figure via exchange.UserMargin.
func (w *Wallet) UserMargin(ctx context.Context) (float64, error) {
	state, err := w.client.UserState(ctx, w.creds.Address)
	if err != nil {
		return 0, fmt.Errorf("user state: %w", err)
	}
	return exchange.UserMargin(state), nil
}

// Address returns the wallet's public address, the identifier every
// exchange read call (UserState, UserFees, SubscribeUserFills) is keyed on.
func (w *Wallet) Address() string { return w.creds.Address }

// envFileFor picks the .env file to load based on the exchange base URL,
// exactly as spec.md's Environment section describes: production loads
// .env, a testnet base URL loads .env.testnet, and an explicit test base URL
// loads .env.test.
func envFileFor(baseURL string) string {
	lower := strings.ToLower(baseURL)
	switch {
	case baseURL == "":
		return ".env"
	case strings.Contains(lower, "testnet"):
		return ".env.testnet"
	case strings.Contains(lower, "test"):
		return ".env.test"
	default:
		return ".env"
	}
}

// Load reads PRIVATE_KEY and WALLET from the environment, loading the .env
// file selected by baseURL first (ignoring a missing file, matching the
// teacher's godotenv.Load() tolerance). Both variables are required; a
// dry-run/paper-trading caller that never submits orders may pass an empty
// baseURL and fall back on a Wallet that is never asked for margin.
func Load(baseURL string) (Credentials, error) {
	_ = godotenv.Load(envFileFor(baseURL))

	creds := Credentials{
		PrivateKey: os.Getenv("PRIVATE_KEY"),
		Address:    os.Getenv("WALLET"),
	}
	if creds.PrivateKey == "" {
		return Credentials{}, fmt.Errorf("wallet: PRIVATE_KEY not set")
	}
	if creds.Address == "" {
		return Credentials{}, fmt.Errorf("wallet: WALLET not set")
	}
	return creds, nil
}
