package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kyungseok-lee/go-gcquake/pkg/gcquake"
)

func runDemoCmd(cmd *cobra.Command, args []string) error {
	if leakMB <= 0 {
		return fmt.Errorf("--%s must be positive", FlagLeakMB)
	}
	if reportEvery <= 0 {
		return fmt.Errorf("--%s must be positive", FlagReportEvery)
	}
	src := gcquake.Source(source)
	if src != gcquake.SourcePause && src != gcquake.SourceCPU {
		return fmt.Errorf("--%s must be %q or %q", FlagSource, gcquake.SourcePause, gcquake.SourceCPU)
	}

	logger, err := gcquake.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	agent, err := gcquake.Attach(optionsArg(args),
		gcquake.WithLogger(logger),
		gcquake.WithRegistry(registry),
		gcquake.WithSource(src))
	if err != nil {
		return err
	}
	defer agent.Detach()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if demoDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, demoDuration)
		defer cancel()
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsMux(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	prevLimit := debug.SetMemoryLimit(int64(memoryLimitMB) << 20)
	defer debug.SetMemoryLimit(prevLimit)
	logger.Info("leaking memory until gcquake intervenes",
		zap.Int("leak_mb_per_tick", leakMB),
		zap.Int("memory_limit_mb", memoryLimitMB))

	leak(ctx, agent, leakMB, reportEvery, cmd.OutOrStdout())

	status := agent.Status()
	if err := gcquake.GenerateTextReport(status, agent.Events(), cmd.OutOrStdout()); err != nil {
		return err
	}
	if status.Enforced {
		return errors.New("GC death spiral was enforced")
	}
	return nil
}

func metricsMux(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

// leak retains mb megabytes every tick and churns short-lived garbage until
// ctx is done.
func leak(ctx context.Context, agent *gcquake.Agent, mb int, every time.Duration, out io.Writer) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	report := time.NewTicker(every)
	defer report.Stop()

	var retained [][]byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-report.C:
			s := agent.Status()
			fmt.Fprintf(out, "[%s] retained=%dMB classification=%s accumulated=%s gc_time=%s\n",
				s.Uptime.Round(time.Second), len(retained)*mb, s.Classification,
				s.State.Accumulated.Round(time.Millisecond), s.TotalGCTime.Round(time.Millisecond))
		case <-ticker.C:
			chunk := make([]byte, mb<<20)
			for i := 0; i < len(chunk); i += 4096 {
				chunk[i] = 1
			}
			retained = append(retained, chunk)

			for i := 0; i < 64; i++ {
				garbage := make([]byte, 64<<10)
				garbage[0] = byte(i)
			}
		}
	}
}
