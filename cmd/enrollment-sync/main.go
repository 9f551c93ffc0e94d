package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/ctp-enrollment-api/internal/dto"
	"github.com/noah-isme/ctp-enrollment-api/pkg/offline"
)

const usage = `enrollment-sync records enrollments from an intake station that may lose connectivity.

Usage:
  enrollment-sync [flags] submit <payload.json>   submit an enrollment, queueing it locally when offline
  enrollment-sync [flags] pending                 list enrollments waiting to be synced
  enrollment-sync [flags] sync                    check connectivity and replay pending enrollments once
  enrollment-sync [flags] watch                   probe the server and replay on every reconnect

Flags:
`

type options struct {
	apiURL  string
	token   string
	dataDir string
	probe   string
	timeout time.Duration
	verbose bool
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("enrollment-sync", pflag.ExitOnError)
	flags.StringVar(&opts.apiURL, "api", envOr("ENROLLMENT_API_URL", "http://localhost:8080/api/v1"), "API base URL including prefix")
	flags.StringVar(&opts.token, "token", os.Getenv("ENROLLMENT_API_TOKEN"), "bearer token; empty submits through the public form endpoint")
	flags.StringVar(&opts.dataDir, "data-dir", envOr("ENROLLMENT_SYNC_DIR", "./.enrollment-sync"), "directory holding the pending queue")
	flags.StringVar(&opts.probe, "probe", "@every 15s", "cron spec for connectivity probes in watch mode")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	logr := newLogger(opts.verbose)
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStation(opts, logr)
	if err != nil {
		logr.Fatal("failed to open pending queue", zap.Error(err))
	}

	switch args[0] {
	case "submit":
		if len(args) < 2 {
			flags.Usage()
			os.Exit(2)
		}
		err = st.submit(ctx, args[1])
	case "pending":
		err = st.pending()
	case "sync":
		err = st.syncOnce(ctx)
	case "watch":
		err = st.watch(ctx, opts.probe)
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		logr.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

type syncApp struct {
	client   *offline.Client
	queue    *offline.Queue
	replayer *offline.Replayer
	observer *offline.Observer
	station  *offline.Station
	timeout  time.Duration
	logger   *zap.Logger
}

func newStation(opts options, logr *zap.Logger) (*syncApp, error) {
	kv, err := offline.NewFileKV(opts.dataDir)
	if err != nil {
		return nil, err
	}
	notifier := offline.NotifierFunc(func(n offline.Notification) {
		fmt.Printf("[%s] %s\n", n.Level, n.Message)
	})
	client := offline.NewClient(opts.apiURL, offline.ClientOptions{Token: opts.token, Timeout: opts.timeout})
	queue := offline.NewQueue(kv, logr)
	replayer := offline.NewReplayer(queue, client, notifier, logr)
	// Start offline so the first successful probe triggers a replay.
	observer := offline.NewObserver(offline.Offline, replayer, logr)
	return &syncApp{
		client:   client,
		queue:    queue,
		replayer: replayer,
		observer: observer,
		station:  offline.NewStation(client, queue, observer, notifier),
		timeout:  opts.timeout,
		logger:   logr,
	}, nil
}

func (a *syncApp) submit(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var req dto.EnrollmentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	probe, err := offline.NewProbe(a.client, a.observer, "", a.timeout, a.logger)
	if err != nil {
		return err
	}
	probe.Check(ctx)
	a.observer.Wait()

	result, err := a.station.Submit(ctx, req)
	if err != nil {
		return err
	}
	if result.Queued {
		fmt.Printf("queued %s\n", result.EntryID)
		return nil
	}
	fmt.Printf("created %s\n", result.Enrollment.ID)
	return nil
}

func (a *syncApp) pending() error {
	entries := a.queue.List()
	if len(entries) == 0 {
		fmt.Println("no pending enrollments")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %-30s  attempts=%d  %s\n", e.ID, e.QueuedAt.Local().Format("2006-01-02 15:04"), e.Enrollment.FullName, e.Attempts, e.LastError)
	}
	return nil
}

func (a *syncApp) syncOnce(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.client.Health(checkCtx); err != nil {
		return err
	}
	result, err := a.replayer.Replay(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("sync finished", zap.Int("synced", result.Synced), zap.Int("failed", result.Failed))
	return nil
}

func (a *syncApp) watch(ctx context.Context, spec string) error {
	probe, err := offline.NewProbe(a.client, a.observer, spec, a.timeout, a.logger)
	if err != nil {
		return err
	}
	changes, unsubscribe := a.queue.Subscribe()
	defer unsubscribe()

	probe.Check(ctx)
	probe.Start()
	defer probe.Stop()

	for {
		select {
		case <-ctx.Done():
			a.observer.Wait()
			return nil
		case change := <-changes:
			a.logger.Debug("queue changed", zap.String("op", string(change.Op)), zap.Int("pending", change.Size))
		}
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
