// amfix runs the AM gain controller against a BK4819 radio
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/gousb"
	"github.com/spf13/pflag"
	"periph.io/x/host/v3"

	"github.com/herlein/amfix/pkg/amfix"
	"github.com/herlein/amfix/pkg/bk4819"
	"github.com/herlein/amfix/pkg/cable"
	"github.com/herlein/amfix/pkg/ptt"
	"github.com/herlein/amfix/pkg/radio"
	"github.com/herlein/amfix/pkg/registers"
	"github.com/herlein/amfix/pkg/scheduler"
	"github.com/herlein/amfix/pkg/telemetry"
	"github.com/herlein/amfix/pkg/uart"
)

var (
	portName     = pflag.StringP("port", "p", "", "Serial port of the programming cable (default: auto-detect)")
	cableSel     = pflag.StringP("cable", "c", "", cable.SelectorUsage())
	gpioPins     = pflag.String("gpio", "", "Bit-bang the chip bus on GPIO pins scn,scl,sda instead of the UART")
	pttChip      = pflag.String("ptt-chip", "gpiochip0", "GPIO chip of the PTT line")
	pttLine      = pflag.Int("ptt-line", -1, "PTT line offset (-1 = no PTT input)")
	pttActiveLow = pflag.Bool("ptt-active-low", true, "PTT pulls the line low")
	configPath   = pflag.String("config", "", "Controller YAML configuration file")
	vfo          = pflag.Int("vfo", 0, "Active VFO slot (0 or 1)")
	modulation   = pflag.StringP("modulation", "m", "AM", "Modulation of the active slot (FM, AM, USB)")
	listOnly     = pflag.BoolP("list", "l", false, "List programming cables and serial ports")
	telemetryDir = pflag.String("telemetry-dir", "", "Write adjustments as daily CSV files to this directory")
	logLevel     = pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
	duration     = pflag.Duration("duration", 0, "Run duration (0 = indefinite)")
	readTimeout  = pflag.Duration("timeout", uart.DefaultReadTimeout, "UART reply timeout")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Front-end gain controller for AM reception on BK4819 radios\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -l                                  # List cables and ports\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -p /dev/ttyUSB0                     # Run over the programming cable\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --gpio GPIO17,GPIO27,GPIO22         # Drive the chip directly\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --ptt-line 23 --telemetry-dir logs  # Follow PTT, log adjustments\n", os.Args[0])
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
		Prefix:          "amfix",
	})
	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	usb := gousb.NewContext()
	defer usb.Close()

	if *listOnly {
		return listDevices(usb)
	}

	if !radio.ValidVFO(*vfo) {
		return fmt.Errorf("vfo must be 0-%d", radio.NumVFOs-1)
	}
	mod, err := radio.ParseModulation(*modulation)
	if err != nil {
		return err
	}

	// Load configuration
	file := amfix.DefaultConfigFile()
	if *configPath != "" {
		file, err = amfix.LoadConfigFile(*configPath)
		if err != nil {
			return err
		}
		logger.Info("loaded configuration", "name", file.Name, "path", *configPath)
	}
	config := file.ToConfig()
	config.Logger = logger.With("component", "controller")

	// Open the chip bus
	bus, closeBus, err := openBus(usb, logger)
	if err != nil {
		return err
	}
	defer closeBus()

	chip := bk4819.New(bus, logger.With("component", "chip"))
	r := radio.New()
	if err := r.SetCurrent(*vfo); err != nil {
		return err
	}
	if err := r.SetModulation(*vfo, mod); err != nil {
		return err
	}

	ctrl, err := amfix.New(chip, r, config)
	if err != nil {
		return err
	}
	defer chip.RestoreDefaultGain()

	if *pttLine >= 0 {
		w, err := ptt.Open(*pttChip, *pttLine, r, ptt.Options{
			ActiveLow: *pttActiveLow,
			PullUp:    *pttActiveLow,
			Logger:    logger.With("component", "ptt"),
		})
		if err != nil {
			return err
		}
		defer w.Close()
	}

	schedConfig := scheduler.ConfigFrom(config)
	schedConfig.Logger = logger.With("component", "scheduler")

	dir := *telemetryDir
	if dir == "" && file.Telemetry.Enabled {
		dir = file.Telemetry.Dir
	}
	if dir != "" {
		rec, err := telemetry.New(dir, file.Telemetry.Pattern)
		if err != nil {
			return err
		}
		defer rec.Close()
		schedConfig.Recorder = rec
		logger.Info("recording adjustments", "dir", dir)
	}

	sched, err := scheduler.New(ctrl, r, schedConfig)
	if err != nil {
		return err
	}

	// Set up signal handling and timeout
	var ctx context.Context
	var cancel context.CancelFunc
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), *duration)
		logger.Info("running", "duration", *duration)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
		logger.Info("running (Press Ctrl+C to stop)")
	}
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("interrupted")
		cancel()
	}()

	results := make(chan amfix.Result, 64)
	counts := make(map[amfix.Action]int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			counts[res.Action]++
			if res.Action == amfix.ActionAdjusted {
				logger.Info("gain adjusted",
					"vfo", res.VFO, "rssi", res.RSSI, "diff_db", res.DiffDB,
					"index", res.Index, "gain_db", res.GainDB, "offset", res.Offset)
			}
		}
	}()

	start := time.Now()
	err = sched.Run(ctx, results)
	<-done
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	printSummary(ctrl, sched, counts, time.Since(start))
	if chipErr := chip.Err(); chipErr != nil {
		logger.Warn("chip bus reported errors", "err", chipErr)
	}
	return err
}

// openBus returns the UART client or the GPIO bus, and a function releasing it
func openBus(usb *gousb.Context, logger *log.Logger) (registers.Bus, func(), error) {
	if *gpioPins != "" {
		pins := strings.Split(*gpioPins, ",")
		if len(pins) != 3 {
			return nil, nil, fmt.Errorf("--gpio needs three pins scn,scl,sda, got %q", *gpioPins)
		}
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialise GPIO: %w", err)
		}
		bus, err := bk4819.OpenGPIOBus(pins[0], pins[1], pins[2])
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using GPIO bus", "scn", pins[0], "scl", pins[1], "sda", pins[2])
		return bus, func() {}, nil
	}

	port := *portName
	if port == "" {
		p, c, err := cable.ResolvePort(usb, cable.Selector(*cableSel))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to find programming cable: %w", err)
		}
		logger.Info("found cable", "cable", c.String(), "port", p)
		port = p
	}

	client, err := uart.Open(port, *readTimeout, logger.With("component", "uart"))
	if err != nil {
		return nil, nil, err
	}
	version, err := client.Hello()
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("radio did not answer on %s: %w", port, err)
	}
	logger.Info("connected", "port", port, "firmware", version)
	return client, func() { client.Close() }, nil
}

func listDevices(usb *gousb.Context) error {
	cables, err := cable.FindCables(usb)
	if err != nil {
		return err
	}
	if len(cables) == 0 {
		fmt.Println("No programming cables found")
	} else {
		fmt.Printf("Found %d programming cable(s):\n", len(cables))
		for i, c := range cables {
			fmt.Printf("  [%d] %s\n", i, c)
		}
	}

	ports, err := uart.ListPorts()
	if err != nil {
		return err
	}
	fmt.Printf("\nSerial ports:\n")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func printSummary(ctrl *amfix.Controller, sched *scheduler.Scheduler, counts map[amfix.Action]int, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Runtime:   %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Ticks:     %d\n", sched.Ticks())
	for _, a := range []amfix.Action{amfix.ActionAdjusted, amfix.ActionPaused, amfix.ActionRestored, amfix.ActionWaiting, amfix.ActionDisabled} {
		if counts[a] > 0 {
			fmt.Printf("  %-10s %d\n", a.String()+":", counts[a])
		}
	}
	for v := range radio.NumVFOs {
		st := ctrl.State(v)
		fmt.Printf("  VFO %d:     index %d (%d dB), offset %d\n",
			v, st.CurrentIndex, ctrl.Table().GainDB(st.CurrentIndex), st.RSSIGainOffset)
	}
}
