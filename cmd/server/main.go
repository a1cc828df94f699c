// Command server is the control plane's entrypoint: it loads configuration,
// wires the exchange client, margin book, and Bot supervisor, and serves the
// frontend HTTP/WS surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/duneflow/perpengine/api"
	"github.com/duneflow/perpengine/bot"
	"github.com/duneflow/perpengine/config"
	"github.com/duneflow/perpengine/exchange"
	"github.com/duneflow/perpengine/frontend"
	"github.com/duneflow/perpengine/margin"
	"github.com/duneflow/perpengine/notification"
	"github.com/duneflow/perpengine/realtime"
	"github.com/duneflow/perpengine/strategy"
	"github.com/duneflow/perpengine/wallet"
)

// marginDB opens the margin journal and attaches it to book, logging (not
// failing startup) if the local snapshot store is unavailable: crash
// recovery is a convenience, not a dependency the engine should refuse to
// start without.
func marginDB(path string, book *margin.Book) {
	journal, err := margin.OpenJournal(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("margin journal unavailable, starting without crash-recovery snapshot")
		return
	}
	book.WithJournal(journal)
}

const takerFeeRate = 0.00045 // Binance USDⓈ-M futures default taker fee

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	creds, err := wallet.Load(cfg.BinanceBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load wallet credentials")
	}

	client := exchange.NewBinanceClient(cfg.BinanceAPIKey, cfg.BinanceAPISecret, log.Logger)
	w := wallet.New(creds, client)

	book := margin.New(w)
	marginDB(cfg.MarginDBPath, book)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := book.Sync(ctx); err != nil {
		log.Warn().Err(err).Msg("initial margin sync failed, starting with zero on-chain balance")
	}

	registry := strategy.NewRegistry()

	updates := make(chan frontend.Update, 4096)
	b := bot.New(client, book, registry, takerFeeRate, updates, log.Logger)

	// onEvent lets the websocket hub feed inbound frontend commands straight
	// into the Bot, same path as HTTP POST /command.
	wsManager := realtime.NewWebSocketManager(func(ev frontend.Event) {
		select {
		case b.In <- ev:
		default:
			log.Warn().Str("kind", string(ev.Kind)).Msg("bot event channel full, dropping websocket command")
		}
	})
	go wsManager.Run()

	notifier := notification.NewManager(wsManager)
	notifier.Info("engine starting", fmt.Sprintf("trading mode: %s", cfg.TradingMode))

	go b.Run(ctx, creds.Address)

	// Fan every Bot update out over the websocket hub and into the
	// notification log for trade-relevant events.
	go func() {
		for u := range updates {
			wsManager.BroadcastUpdate(u)
			if u.Kind == frontend.UpdateNewTradeInfo {
				notifier.Send(notification.Trade, "trade closed", u.Asset, nil)
			}
		}
	}()

	router := api.NewRouter(cfg, b.In, wsManager)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
}
