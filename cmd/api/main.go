package main

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"influxdb-listener/internal/config"
	"influxdb-listener/internal/repository"
	"influxdb-listener/internal/router"
	"influxdb-listener/internal/util"
)

var (
	flagConfig string
	flagAddr   string
)

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve points recorded into the SQLite backend",
	Example: `  api
  api --config listener.yaml --addr :9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Listener parameter file (YAML)")
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "Listen address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func LoggerInitialize() (*util.ListenerLogger, error) {

	logger := &util.ListenerLogger{}

	ConstructAndCreateLogFolder()

	if err := logger.Init("webService.log", false); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		return nil, err
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Service started")

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: Points API started \n", currentTime)

	return logger, nil

}

func serve() error {

	logger, err := LoggerInitialize()
	if err != nil {
		return fmt.Errorf("error while initializing the logger: %w", err)
	}
	defer logger.DeInit()

	params := config.DefaultParameters()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		params = params.Merge(loaded)
	}
	params[config.KeyStorageType] = config.StorageSQLite

	cfg, err := config.FromParams(params)
	if err != nil {
		return err
	}

	store := repository.NewSQLiteStore(cfg.Storage.SQLitePath, cfg.InfluxDB.Database)
	store.SetLogger(logger)
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize point store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return router.Run(flagAddr, store, reg, logger)
}

func ConstructAndCreateLogFolder() {
	logPath := ".." + string(os.PathSeparator) + "log"
	util.SetLoggerPath(logPath)
	util.CheckAndCreateLogFolder(logPath)
	util.SetCommonLoggerAttributes(3)
}
