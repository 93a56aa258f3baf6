// amfix-regdump: Dump BK4819 front-end registers to a YAML file
//
// This tool connects to a radio over its programming cable, reads the AGC
// table, filter and RSSI registers, decodes the gain stages and saves the
// dump. With --restore it writes a saved dump back instead.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/gousb"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/herlein/amfix/pkg/cable"
	"github.com/herlein/amfix/pkg/config"
	"github.com/herlein/amfix/pkg/gaintable"
	"github.com/herlein/amfix/pkg/registers"
	"github.com/herlein/amfix/pkg/uart"
)

func main() {
	// Parse command line flags
	outputFile := pflag.StringP("output", "o", "", "Output file path (default: etc/radios/<name>.yaml, name from --name, cable serial or port)")
	portName := pflag.StringP("port", "p", "", "Serial port of the programming cable (default: auto-detect)")
	cableSel := pflag.StringP("cable", "c", "", cable.SelectorUsage())
	name := pflag.StringP("name", "n", "", "Radio name for the dump (default: cable serial or port name)")
	restore := pflag.StringP("restore", "r", "", "Write the registers of this dump back to the radio")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")
	listOnly := pflag.BoolP("list", "l", false, "List programming cables only, don't dump")
	stdout := pflag.Bool("stdout", false, "Print the dump as YAML instead of writing a file")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "amfix-regdump"})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	// Create USB context
	usb := gousb.NewContext()
	defer usb.Close()

	if *listOnly {
		listCables(usb)
		return
	}

	// Resolve the port
	port := *portName
	radioName := *name
	if port == "" {
		p, c, err := cable.ResolvePort(usb, cable.Selector(*cableSel))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		port = p
		if radioName == "" && c.Serial != "" {
			radioName = c.Serial
		}
		if *verbose {
			fmt.Printf("Using cable: %s\n", c)
		}
	}

	client, err := uart.Open(port, uart.DefaultReadTimeout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// Test connectivity with hello
	if *verbose {
		fmt.Print("Testing connectivity... ")
	}
	firmware, err := client.Hello()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Hello failed: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("OK (%s)\n", firmware)
	}

	if *restore != "" {
		restoreDump(client, *restore, *verbose)
		return
	}

	// Dump registers
	if *verbose {
		fmt.Println("Reading front-end registers...")
	}

	configuration, err := config.DumpFromRadio(client, radioName, firmware)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to dump registers: %v\n", err)
		os.Exit(1)
	}
	configuration.Cable = port

	// Output to stdout as YAML
	if *stdout {
		data, err := yaml.Marshal(configuration)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to marshal dump: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		return
	}

	// Save, by default under etc/radios/<name>.yaml
	path, err := config.SaveToFile(configuration, *outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to save dump: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Registers saved to: %s\n", path)

	if *verbose {
		printSummary(configuration)
	}
}

func restoreDump(bus registers.Bus, path string, verbose bool) {
	configuration, err := config.LoadFromFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load dump: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		fmt.Printf("Dump loaded:\n")
		fmt.Printf("  Radio:     %s\n", configuration.Name)
		fmt.Printf("  Firmware:  %s\n", configuration.Firmware)
		fmt.Printf("  Timestamp: %s\n", configuration.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if err := config.ApplyToRadio(bus, configuration); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to restore registers: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Registers restored successfully")
}

func listCables(usb *gousb.Context) {
	cables, err := cable.FindCables(usb)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to enumerate cables: %v\n", err)
		os.Exit(1)
	}

	if len(cables) == 0 {
		fmt.Println("No programming cables found")
		return
	}

	fmt.Printf("Found %d programming cable(s):\n\n", len(cables))
	for i, c := range cables {
		fmt.Printf("Cable %d:\n", i)
		fmt.Printf("  Bridge:       %s\n", c.Bridge.Name)
		fmt.Printf("  Manufacturer: %s\n", c.Manufacturer)
		fmt.Printf("  Product:      %s\n", c.Product)
		fmt.Printf("  Serial:       %s\n", c.Serial)
		fmt.Printf("  Location:     bus %d addr %d\n", c.Bus, c.Address)
		fmt.Println()
	}
}

func printSummary(cfg *config.RadioConfig) {
	fmt.Println("\nFront-end Summary:")
	for _, addr := range []uint8{
		registers.RegAGCTable0, registers.RegAGCTable1, registers.RegAGCTable2,
		registers.RegAGCTable3, registers.RegAGCTable4,
	} {
		stages, ok := cfg.FrontEnd(addr)
		if !ok {
			continue
		}
		fmt.Printf("  REG_%02X:  0x%04X  %s\n", addr, gaintable.Encode(stages), formatStages(stages))
	}
	if gain, ok := cfg.GainDB(); ok {
		fmt.Printf("  Gain:     %d dB\n", gain)
	}
	if dbm, ok := cfg.RSSIDBm(); ok {
		raw := cfg.Registers.Registers[registers.RegRSSI] & registers.RSSIMask
		fmt.Printf("  RSSI:     %.1f dBm (%d%%)\n", dbm, registers.PowerPercent(raw))
	}
	fmt.Println("\nEditor fields:")
	for _, fv := range cfg.Fields() {
		fmt.Printf("  %s\n", fv)
	}
}

func formatStages(s gaintable.Stages) string {
	return fmt.Sprintf("LNAS %d (%d dB) LNA %d (%d dB) MIX %d (%d dB) PGA %d (%d dB) = %d dB",
		s.LNAShort, gaintable.LNAShortDB[s.LNAShort&0x3],
		s.LNA, gaintable.LNADB[s.LNA&0x7],
		s.Mixer, gaintable.MixerDB[s.Mixer&0x3],
		s.PGA, gaintable.PGADB[s.PGA&0x7],
		s.GainDB())
}
