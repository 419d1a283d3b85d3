package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gekko3d/umbra/lightrt/rt/app"
	"github.com/gekko3d/umbra/lightrt/rt/core"
	"github.com/gekko3d/umbra/lightrt/rt/gfx"
	"github.com/gekko3d/umbra/lightrt/rt/gpu"
	"github.com/gekko3d/umbra/lightrt/rt/shadow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// viperKey marks a flag as overriding a config key.
const viperKey = "viper"

func bindKey(cmd *cobra.Command, flag, key string) {
	_ = cmd.Flags().SetAnnotation(flag, viperKey, []string{key})
}

func newSimulateCmd(c *cli) *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Render frames headless and report shadow scheduling stats",
		Long: `simulate renders a synthetic scene with a manual clock advancing one
frame time per frame. With --metrics-addr the shadow pass metrics are served
on /metrics and stay up after the run until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return c.simulate(ctx, cmd.OutOrStdout(), device)
		},
	}
	cmd.Flags().Int("frames", 120, "frames to render")
	cmd.Flags().Int("lights", 16, "random local lights in the demo scene")
	cmd.Flags().Uint64("seed", 1, "random seed for the scene and noise")
	cmd.Flags().Duration("frame-time", 16*time.Millisecond, "simulated time per frame")
	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().StringVar(&device, "device", "null", "render device: null or gpu")
	bindKey(cmd, "frames", "simulate.frames")
	bindKey(cmd, "lights", "simulate.lights")
	bindKey(cmd, "seed", "simulate.seed")
	bindKey(cmd, "frame-time", "simulate.frame_time")
	bindKey(cmd, "metrics-addr", "simulate.metrics_addr")
	return cmd
}

func openDevice(kind string, log core.Logger) (gfx.Device, func(), error) {
	switch kind {
	case "null":
		return gfx.NewNullDevice(), func() {}, nil
	case "gpu":
		dev, err := gpu.NewDevice(gpu.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return dev, dev.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown device %q", kind)
	}
}

// runTotals sums frame stats over a run.
type runTotals struct {
	frames int
	shadow shadow.PassStats
	lights int
	draws  int
	polys  int
}

func (t *runTotals) add(s app.FrameStats) {
	t.frames++
	t.shadow.UpdatedMaps += s.Shadow.UpdatedMaps
	t.shadow.SkippedByBudget += s.Shadow.SkippedByBudget
	t.shadow.SkippedByLOD += s.Shadow.SkippedByLOD
	t.shadow.Occluded += s.Shadow.Occluded
	t.shadow.Failed += s.Shadow.Failed
	t.shadow.Released += s.Shadow.Released
	t.shadow.ActiveMaps = s.Shadow.ActiveMaps
	t.lights += s.Lights.Lights
	t.draws += s.Device.DrawCalls
	t.polys += s.Device.PolyCount
}

func (t *runTotals) write(w io.Writer) {
	fmt.Fprintf(w, "frames:            %d\n", t.frames)
	fmt.Fprintf(w, "shadow maps:       %d\n", t.shadow.ActiveMaps)
	fmt.Fprintf(w, "shadow updates:    %d\n", t.shadow.UpdatedMaps)
	fmt.Fprintf(w, "skipped (budget):  %d\n", t.shadow.SkippedByBudget)
	fmt.Fprintf(w, "skipped (lod):     %d\n", t.shadow.SkippedByLOD)
	fmt.Fprintf(w, "occluded:          %d\n", t.shadow.Occluded)
	fmt.Fprintf(w, "failed:            %d\n", t.shadow.Failed)
	fmt.Fprintf(w, "released:          %d\n", t.shadow.Released)
	fmt.Fprintf(w, "binned lights:     %d\n", t.lights)
	fmt.Fprintf(w, "draw calls:        %d\n", t.draws)
	fmt.Fprintf(w, "polys:             %d\n", t.polys)
}

func (c *cli) simulate(ctx context.Context, out io.Writer, device string) error {
	cfg := c.cfg
	sim := cfg.Simulate
	if sim.Frames < 0 || sim.Lights < 0 {
		return fmt.Errorf("frames and lights must not be negative")
	}

	var metrics *shadow.Metrics
	var srv *http.Server
	if sim.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics = shadow.NewMetrics(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: sim.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.log.Errorf("metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		c.log.Infof("serving metrics on %s/metrics", sim.MetricsAddr)
	}

	dev, closeDev, err := openDevice(device, c.log)
	if err != nil {
		return err
	}
	defer closeDev()

	clock := &core.ManualClock{}
	a, err := newApp(dev, cfg, c.log, sim.Lights, app.WithClock(clock), app.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer a.Close()

	var reload reloader
	if c.loader.Viper().ConfigFileUsed() != "" {
		reload = watchConfig(c.loader)
	}

	frameMs := uint32(sim.FrameTime.Milliseconds())
	var totals runTotals
	for i := 0; i < sim.Frames; i++ {
		if ctx.Err() != nil {
			break
		}
		if reload != nil {
			reload.apply(a, c.log)
		}
		a.Animate(float32(sim.FrameTime.Seconds()) * 0.5)
		stats, err := a.RenderFrame()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		totals.add(stats)
		c.log.Debugf("frame %d: %d/%d maps updated, %d lights, %d draws",
			stats.Frame, stats.Shadow.UpdatedMaps, stats.Shadow.ActiveMaps, stats.Lights.Lights, stats.Device.DrawCalls)
		clock.Advance(frameMs)
	}

	totals.write(out)
	fmt.Fprintln(out)
	fmt.Fprint(out, a.Profiler.GetStatsString())

	if srv != nil && ctx.Err() == nil {
		c.log.Infof("run finished, metrics stay up until interrupted")
		<-ctx.Done()
	}
	return nil
}
