// rwtail connects to a Rainwave station and prints every published event
// as a JSON line until interrupted.
// Usage: go run ./cmd/rwtail --config configs/rwsync.example.yaml --keys sched_current,user
//
// The API key is read from the config file, usually via ${RAINWAVE_API_KEY}.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rickgao/rainwave-sync/internal/auth"
	"github.com/rickgao/rainwave-sync/internal/config"
	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/events"
	"github.com/rickgao/rainwave-sync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/rwsync.example.yaml", "path to config file")
	keyList := flag.String("keys", "", "comma-separated event keys to print (default: all)")
	call := flag.String("call", "", "issue one read request once ready, e.g. request_line")
	verbose := flag.Bool("verbose", false, "print payloads and debug logs")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so stdout stays a clean event stream.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, *keyList, *call, *verbose, logger); err != nil {
		logger.Error("rwtail failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, keyList, call string, verbose bool, logger *slog.Logger) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	creds, err := auth.LoadCredentials(cfg.Rainwave.UserID, cfg.Rainwave.APIKey, cfg.Rainwave.APIKeyFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	keys, err := parseKeys(keyList)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	bus := events.NewBus(logger)
	p := newPrinter(os.Stdout, keys, verbose)
	bus.SubscribeAll(p.print)

	mc := connection.DefaultManagerConfig()
	mc.URL = cfg.Rainwave.URL
	mc.Station = cfg.Rainwave.Station
	mc.Credentials = *creds
	mc.Client.UserAgent = version.UserAgent("rwtail")
	manager := connection.NewManager(mc, bus, logger)

	logger.Info("connecting", "endpoint", mc.Endpoint(), "user_id", creds.UserID)
	if err := manager.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("ready", "state", manager.State().String())

	if call != "" {
		if _, err := manager.Call(ctx, call, nil); err != nil {
			logger.Warn("call failed", "action", call, "error", err)
		}
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := manager.Stop(stopCtx); err != nil {
		logger.Warn("stop", "error", err)
	}

	logger.Info("summary", "printed", p.count(), "messages", manager.Stats().MessagesReceived)
	return nil
}

// parseKeys resolves a comma-separated key list. Empty means all keys.
func parseKeys(list string) (map[events.Key]bool, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	keys := make(map[events.Key]bool)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		k, ok := events.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown key %q", name)
		}
		keys[k] = true
	}
	return keys, nil
}

// line is one printed event.
type line struct {
	Time      string          `json:"time"`
	Key       string          `json:"key"`
	Bytes     int             `json:"bytes"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

type printer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	keys    map[events.Key]bool
	verbose bool
	printed int
}

func newPrinter(w io.Writer, keys map[events.Key]bool, verbose bool) *printer {
	return &printer{enc: json.NewEncoder(w), keys: keys, verbose: verbose}
}

func (p *printer) print(e events.Event) {
	if p.keys != nil && !p.keys[e.Key] {
		return
	}

	l := line{
		Time:  e.ReceivedAt.Format(time.RFC3339Nano),
		Key:   string(e.Key),
		Bytes: len(e.Payload),
	}
	if p.verbose {
		l.Payload = e.Payload
	}
	if e.Err != nil {
		l.Error = e.Err.Error()
		l.ErrorKind = connection.KindOf(e.Err).String()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.enc.Encode(l)
	p.printed++
}

func (p *printer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}
