// amfix-sim runs the gain controller against a simulated chip
//
// A scenario scripts the antenna signal, modulation and radio mode tick by
// tick. Without --scenario the built-in strong carrier scenario is played.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/herlein/amfix/pkg/amfix"
	"github.com/herlein/amfix/pkg/registers"
	"github.com/herlein/amfix/pkg/scheduler"
	"github.com/herlein/amfix/pkg/sim"
	"github.com/herlein/amfix/pkg/telemetry"
)

var (
	scenarioPath = pflag.StringP("scenario", "s", "", "Scenario YAML file (default: built-in strong carrier)")
	configPath   = pflag.String("config", "", "Controller YAML configuration file")
	noise        = pflag.Int("noise", 0, "Peak RSSI noise in raw units")
	seed         = pflag.Uint64("seed", 1, "Noise seed")
	refGain      = pflag.Int("reference-gain", -10, "Front-end gain in dB at which the meter reads the antenna level")
	telemetryDir = pflag.String("telemetry-dir", "", "Write adjustments as CSV files to this directory")
	writeOut     = pflag.StringP("write-scenario", "w", "", "Write the built-in scenario to this file and exit")
	verbose      = pflag.BoolP("verbose", "v", false, "Print every tick, not only adjustments")
	logLevel     = pflag.String("log-level", "warn", "Log level (debug, info, warn, error)")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Simulated BK4819 front end for the AM gain controller\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                # Play the strong carrier scenario\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -w carrier.yaml                # Save it as a starting point\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -s carrier.yaml --noise 4 -v   # Noisy run, every tick\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --log-level debug              # Show controller decisions\n", os.Args[0])
	}
	pflag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "amfix-sim",
	})
	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if *writeOut != "" {
		return writeScenario(sim.StrongCarrier(), *writeOut)
	}

	sc := sim.StrongCarrier()
	if *scenarioPath != "" {
		sc, err = sim.LoadScenario(*scenarioPath)
		if err != nil {
			return err
		}
	}

	file := amfix.DefaultConfigFile()
	if *configPath != "" {
		file, err = amfix.LoadConfigFile(*configPath)
		if err != nil {
			return err
		}
	}
	config := file.ToConfig()
	config.Logger = logger.With("component", "controller")

	// Simulated clock, one period per tick
	start := time.Now()
	var h *sim.Harness
	schedConfig := scheduler.ConfigFrom(config)
	schedConfig.Logger = logger.With("component", "scheduler")
	schedConfig.Now = func() time.Time {
		return start.Add(time.Duration(h.Scheduler.Ticks()) * config.TickPeriod)
	}

	if *telemetryDir != "" {
		rec, err := telemetry.New(*telemetryDir, file.Telemetry.Pattern)
		if err != nil {
			return err
		}
		defer rec.Close()
		schedConfig.Recorder = rec
	}

	opts := []sim.Option{sim.WithReferenceGain(*refGain)}
	if *noise > 0 {
		opts = append(opts, sim.WithNoise(*noise, *seed))
	}
	h, err = sim.NewHarness(config, &schedConfig, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Scenario: %s (%d ticks, %v)\n", sc.Name, sc.TotalTicks(),
		time.Duration(sc.TotalTicks())*config.TickPeriod)
	if sc.Description != "" {
		fmt.Printf("  %s\n", sc.Description)
	}
	fmt.Printf("Cap: %d dBm, standby index %d (%d dB)\n\n",
		config.CapDBm, h.Controller.OriginalIndex(), h.Controller.Table().GainDB(h.Controller.OriginalIndex()))

	fmt.Println("  Tick | Signal | Action       | Raw | dBm    | Diff | Idx | Gain | Offset | Comp")
	fmt.Println("-------+--------+--------------+-----+--------+------+-----+------+--------+------")

	adjustments := 0
	err = h.Run(ctx, sc, func(t sim.Tick) {
		res := t.Result
		if res.Action == amfix.ActionAdjusted {
			adjustments++
		} else if !*verbose {
			return
		}
		fmt.Printf("%6d | %6d | %-12s | %3d | %6.1f | %4d | %3d | %4d | %6d | %4d\n",
			t.N, t.SignalDBm, res.Action, res.RawRSSI,
			registers.RSSIToDBm(uint16(res.RawRSSI)), res.DiffDB,
			res.Index, res.GainDB, res.Offset, t.Compensated)
	})
	if err != nil {
		return err
	}

	reads, writes := h.Chip.Counts()
	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Ticks:        %d\n", h.Scheduler.Ticks())
	fmt.Printf("  Adjustments:  %d\n", adjustments)
	fmt.Printf("  Bus reads:    %d\n", reads)
	fmt.Printf("  Bus writes:   %d\n", writes)
	fmt.Printf("  Front end:    %d dB\n", h.Chip.FrontEndGain())
	return nil
}

func writeScenario(sc *sim.Scenario, path string) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario: %w", err)
	}
	fmt.Printf("Scenario %q written to %s\n", sc.Name, path)
	return nil
}
