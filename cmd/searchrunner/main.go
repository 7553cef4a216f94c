package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"searchrunner/internal/benchdata"
	"searchrunner/internal/config"
	"searchrunner/internal/harness"
	"searchrunner/internal/logging"
	"searchrunner/internal/util"
	"searchrunner/internal/version"
)

func main() {
	app := &cli.App{
		Name:    version.Name,
		Usage:   version.Description,
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (text, json)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start the cluster, load the benchmark tables, and serve until interrupted",
				Action: runCluster,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "tables",
						Usage: "Comma-separated benchmark tables to load (default: all)",
					},
					&cli.IntFlag{
						Name:  "node-count",
						Usage: "Number of query cluster nodes",
					},
				},
			},
			{
				Name:   "tables",
				Usage:  "List the benchmark dataset tables",
				Action: listTables,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override from flags
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("tables") {
		cfg.Benchmark.Tables = util.SplitCSV(c.String("tables"))
	}
	if c.IsSet("node-count") {
		cfg.Cluster.NodeCount = c.Int("node-count")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)
	logging.SetFormat(cfg.Log.Format)

	return cfg, nil
}

func runCluster(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc, err := harness.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := rc.LoadAll(ctx); err != nil {
		return err
	}

	fmt.Println("======== SERVER STARTED ========")
	fmt.Println(rc.Cluster.BaseURL())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logging.Info("Shutting down")
	return nil
}

func listTables(c *cli.Context) error {
	for _, table := range benchdata.Tables() {
		fmt.Printf("%s.%s (%d rows, %d columns)\n",
			benchdata.SchemaName, table.Name, table.RowCount, len(table.Columns))
	}
	return nil
}
