package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jersme/enviro"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "export":
		err = exportCommand(os.Args[2:])
	case "capture":
		err = captureCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("enviro %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./enviro.yaml", "Path to monitor configuration file")
	ticks := fs.Int("ticks", 0, "Stop after this many ticks (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts []enviro.FlowOption
	if *ticks > 0 {
		opts = append(opts, enviro.Ticks(*ticks))
	}
	flow, err := enviro.Conf(*cfgPath, opts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./enviro.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := enviro.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(cfg.Providers))
	for _, p := range cfg.EnabledProviders() {
		names = append(names, p.Type)
	}
	fmt.Printf("config %s looks good (providers: %s, tick %s)\n",
		*cfgPath, strings.Join(names, ", "), cfg.Sampler.Interval())
	return nil
}

func exportCommand(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dir := fs.String("dir", "./data/wal", "WAL directory")
	from := fs.Uint64("from", 0, "First entry id to export (0 resumes after the last commit)")
	commit := fs.Bool("commit", false, "Advance the export checkpoint after writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := enviro.ExportWAL(enviro.ExportOptions{Dir: *dir, From: *from, Commit: *commit}, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d readings (ids %d..%d)\n", res.Count, res.First, res.Last)
	return nil
}

func captureCommand(args []string) error {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	cfgPath := fs.String("config", "./enviro.yaml", "Path to configuration file")
	shots := fs.Int("shots", 0, "Stop after this many images (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := enviro.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loop, err := enviro.NewCapture(cfg, enviro.WithMaxShots(*shots))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return loop.Run(ctx)
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"enviro_ticks_total":           0,
		"enviro_provider_errors_total": 0,
		"enviro_sink_errors_total":     0,
		"enviro_wal_size_bytes":        0,
	}
	var fields []string

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "enviro_reading_value{") {
			fields = append(fields, strings.TrimPrefix(line, "enviro_reading_value"))
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] ticks=%.0f provider_errors=%.0f sink_errors=%.0f wal_bytes=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["enviro_ticks_total"],
		targets["enviro_provider_errors_total"],
		targets["enviro_sink_errors_total"],
		targets["enviro_wal_size_bytes"],
	)
	for _, f := range fields {
		fmt.Printf("    %s\n", f)
	}
	return nil
}

func printUsage() {
	fmt.Printf(`enviro CLI

Usage:
  enviro <command> [flags]

Commands:
  run        Start the sampling loop using the provided config
  validate   Load and validate a config file without touching hardware
  export     Print WAL readings as JSON lines
  capture    Run the camera still capture loop
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  enviro run -config ./enviro.yaml
  enviro validate -config ./enviro.yaml
  enviro export -dir ./data/wal -from 1
  enviro capture -config ./enviro.yaml
  enviro stats -url http://localhost:9100/metrics -interval 2s
`)
}
