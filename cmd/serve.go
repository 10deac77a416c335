package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kardianos/service"
	"github.com/rjeczalik/notify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/navidrome/crateindex/conf"
	"github.com/navidrome/crateindex/core/container"
	"github.com/navidrome/crateindex/log"
	"github.com/navidrome/crateindex/model"
	"github.com/navidrome/crateindex/server/monitor"
)

var serveDaemonize bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve operations over stdio line-delimited JSON (§6.1)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDaemonize, "daemonize", false, "install/run as a platform background service instead of foreground stdio")
}

func runServe(c *cobra.Command, _ []string) error {
	if serveDaemonize {
		return runAsService()
	}
	ct, err := newContainer()
	if err != nil {
		return err
	}
	defer ct.Close()
	return serveForeground(ct.Config, ct)
}

// serveForeground runs the stdio transport loop plus whatever ambient
// services the config enables (filesystem watch, cron rescan, HTTP
// monitor), until the process receives SIGINT/SIGTERM or stdin closes.
func serveForeground(cfg *conf.Config, ct *container.Container) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Watch {
		stopWatch := startWatch(ctx, cfg, ct)
		defer stopWatch()
	}
	if cfg.RescanCron != "" {
		stopCron, err := startCron(cfg, ct)
		if err != nil {
			log.Warn(ctx, "rescan cron not started", "error", err)
		} else {
			defer stopCron()
		}
	}
	if cfg.MonitorAddr != "" {
		stopMonitor := monitor.Start(ctx, cfg, ct)
		defer stopMonitor()
	}

	return runTransportLoop(ctx, ct)
}

// runTransportLoop implements §6.1: one JSON RequestEnvelope per stdin
// line, one JSON ResponseEnvelope per stdout line. Logging never touches
// stdout, since stdout is the response channel.
func runTransportLoop(ctx context.Context, ct *container.Container) error {
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	out := json.NewEncoder(os.Stdout)

	for in.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := in.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := handleLine(ctx, ct, line)
		if err := out.Encode(resp); err != nil {
			log.Error(ctx, "failed to encode response", "error", err)
		}
	}
	return in.Err()
}

type wireRequest struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

func handleLine(ctx context.Context, ct *container.Container, line []byte) model.ResponseEnvelope {
	var req wireRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return model.ResponseEnvelope{Error: model.ErrorEnvelopeFrom(model.NewParseError("decoding request envelope", err))}
	}

	// A caller-supplied request ID is echoed back; a locally generated one
	// (distinct from the transport's own ID field) ties together every log
	// line this request's dispatch produces.
	correlationID := uuid.NewString()
	reqCtx := log.NewContext(ctx, correlationID)

	result, err := dispatch(reqCtx, ct, req.Op, req.Args)
	if err != nil {
		log.Warn(reqCtx, "operation failed", "op", req.Op, "error", err)
		return model.ResponseEnvelope{ID: req.ID, Error: model.ErrorEnvelopeFrom(err)}
	}
	return model.ResponseEnvelope{ID: req.ID, Result: result}
}

// startWatch wires an optional filesystem-watch mode (beyond the literal
// spec, in the spirit of §4.4's incremental-scan decision logic): any
// filesystem event under the music root triggers a debounced incremental
// scan instead of waiting for the next scheduled/manual one.
func startWatch(ctx context.Context, cfg *conf.Config, ct *container.Container) func() {
	events := make(chan notify.EventInfo, 64)
	if err := notify.Watch(cfg.MusicRootPath+"/...", events, notify.All); err != nil {
		log.Warn(ctx, "filesystem watch not started", "error", err)
		return func() {}
	}

	go func() {
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-events:
				debounce.Reset(2 * time.Second)
			case <-debounce.C:
				if _, err := ct.ScanMusicFolders(ctx, false, false); err != nil {
					log.Warn(ctx, "watch-triggered scan failed", "error", err)
				}
			}
		}
	}()

	return func() { notify.Stop(events) }
}

// startCron wires an optional RESCAN_CRON schedule for periodic full scans,
// alongside (not instead of) the watch mode above.
func startCron(cfg *conf.Config, ct *container.Container) (func(), error) {
	sched := cron.New()
	_, err := sched.AddFunc(cfg.RescanCron, func() {
		ctx := context.Background()
		if _, err := ct.ScanMusicFolders(ctx, false, true); err != nil {
			log.Warn(ctx, "scheduled scan failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parsing RESCAN_CRON %q: %w", cfg.RescanCron, err)
	}
	sched.Start()
	return func() { <-sched.Stop().Done() }, nil
}

// crateindexService adapts serveForeground to kardianos/service's
// Start/Stop lifecycle for --daemonize, so the same transport loop can run
// as an installed platform service instead of a foreground process.
type crateindexService struct {
	cancel context.CancelFunc
}

func (p *crateindexService) Start(s service.Service) error {
	go p.run()
	return nil
}

func (p *crateindexService) run() {
	cfg, err := conf.Load()
	if err != nil {
		log.Error(context.Background(), "configuration error", "error", err)
		return
	}
	ct, err := container.New(cfg)
	if err != nil {
		log.Error(context.Background(), "failed to start container", "error", err)
		return
	}
	defer ct.Close()
	if err := serveForeground(cfg, ct); err != nil {
		log.Error(context.Background(), "serve loop exited with error", "error", err)
	}
}

func (p *crateindexService) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func runAsService() error {
	svcConfig := &service.Config{
		Name:        "crateindex",
		DisplayName: "crateindex music collection indexer",
		Description: "Scans and serves a local music collection index.",
	}
	prg := &crateindexService{}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	return s.Run()
}
