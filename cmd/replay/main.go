package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"influxdb-listener/internal/config"
	"influxdb-listener/internal/jtl"
	"influxdb-listener/internal/listener"
	"influxdb-listener/internal/util"
)

const autoRunID = "auto"

var (
	flagConfig      string
	flagRunID       string
	flagBatch       int
	flagMetricsAddr string
	flagLogFile     string
	flagSet         []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "replay <results.jtl>",
	Short: "Replay a JMeter result file through the InfluxDB backend listener",
	Long: `Reads a JMeter CSV result file (plain, gzip or zstd) and feeds it to the
listener the way JMeter would during a live run: setup, sample batches,
one thread count tick per second of recorded time, teardown.

Examples:
  replay results.jtl
  replay results.jtl.gz -c listener.yaml --run-id auto
  replay results.jtl -s storageType=sqlite -s sqlitePath=./points.db
  replay results.jtl --metrics-addr :9102`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Listener parameter file (YAML)")
	rootCmd.Flags().StringVar(&flagRunID, "run-id", "", `Run id for the replayed points; "auto" generates one`)
	rootCmd.Flags().IntVarP(&flagBatch, "batch", "b", 100, "Samples per listener call")
	rootCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve sink metrics on this address while replaying")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file under ../log instead of stderr")
	rootCmd.Flags().StringArrayVarP(&flagSet, "set", "s", []string{}, "Set a listener parameter (key=value), can be repeated")
}

// buildParams layers the parameter file, --set values and --run-id over the
// defaults, in that order.
func buildParams() (config.Params, error) {
	params := config.DefaultParameters()

	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		params = params.Merge(loaded)
	}

	for _, kv := range flagSet {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", kv)
		}
		params[key] = value
	}

	switch flagRunID {
	case "":
	case autoRunID:
		params[config.KeyRunID] = uuid.New().String()
	default:
		params[config.KeyRunID] = flagRunID
	}
	return params, nil
}

func initLogger() (*util.ListenerLogger, error) {
	logger := &util.ListenerLogger{}
	if flagLogFile == "" {
		logger.InitConsole()
		return logger, nil
	}

	util.CheckAndCreateLogFolder(util.LOG_FOLDER_NAME_WITH_PATH)
	if err := logger.Init(flagLogFile, false); err != nil {
		return nil, err
	}
	return logger, nil
}

func runReplay(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	params, err := buildParams()
	if err != nil {
		return err
	}

	logger, err := initLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.DeInit()

	reader, err := jtl.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	reg := prometheus.NewRegistry()
	if flagMetricsAddr != "" {
		srv := &http.Server{
			Addr:              flagMetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.LogEvent(util.LOG_LEVEL_ERROR, "Metrics server stopped. Err - ", err)
			}
		}()
		defer srv.Close()
	}

	host := newReplayHost()
	l := listener.New(host,
		listener.WithLogger(logger),
		listener.WithClock(host.Now),
		listener.WithRegisterer(reg),
		listener.WithManualTicks(),
	)

	start := time.Now()
	stats, err := replay(ctx, reader, l, host, params, flagBatch)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Replayed %d samples in %d batches with %d ticks for run %s in %s\n",
		stats.Samples, stats.Batches, stats.Ticks, params[config.KeyRunID], time.Since(start).Round(time.Millisecond))
	return nil
}
