// Command ssikv-admin runs the same deterministic driver as cmd/ssikv
// against stdin, and additionally serves the admin HTTP introspection
// surface of SPEC_FULL.md's DOMAIN STACK against the same in-process
// core/ssi.TransactionManager — the "cmd/*_server" half of the
// teacher's server/cli pair, here applied to one engine instance
// instead of spinning up a second node.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vealocia/advdb-final-proj/config"
	"github.com/vealocia/advdb-final-proj/core/ssi"
	"github.com/vealocia/advdb-final-proj/internal/adminhttp"
	"github.com/vealocia/advdb-final-proj/internal/driver"
	internaltelemetry "github.com/vealocia/advdb-final-proj/internal/telemetry"
	"github.com/vealocia/advdb-final-proj/pkg/logger"
	"github.com/vealocia/advdb-final-proj/pkg/telemetry"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file (optional)")
	inputPath  = flag.String("input", "", "command file to read (default: stdin)")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssikv-admin: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssikv-admin: %v\n", err)
		return 1
	}
	defer log.Sync()

	tel, shutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Error("telemetry init failed")
		return 1
	}
	defer shutdown(context.Background())

	metrics, err := ssi.NewMetrics(tel.Meter)
	if err != nil {
		log.Error("ssi metrics init failed")
		return 1
	}
	httpMetrics, err := internaltelemetry.NewServiceMetrics(tel.Meter)
	if err != nil {
		log.Error("admin http metrics init failed")
		return 1
	}

	tm := ssi.NewTransactionManager(ssi.NewStreamEmitter(os.Stdout), log, metrics)

	var limiter *rate.Limiter
	if cfg.Admin.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Admin.RateLimitPerSecond), cfg.Admin.RateLimitBurst)
	}
	admin := adminhttp.New(tm, httpMetrics, limiter, log)

	ln, err := net.Listen("tcp", cfg.Admin.ListenAddr)
	if err != nil {
		log.Error("admin listen failed")
		return 1
	}
	srv := &http.Server{Handler: admin.Handler()}
	go func() {
		log.Info("admin http surface up", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("admin http server stopped")
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	d := driver.New(tm, log)

	var in *os.File = os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ssikv-admin: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}
	if err := d.Run(in); err != nil {
		fmt.Fprintf(os.Stderr, "ssikv-admin: %v\n", err)
		return 1
	}

	if d.MalformedCount() > 0 {
		return 1
	}
	return 0
}
