// Package cable finds USB-serial programming cables and the serial ports they expose.
package cable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/gousb"
	"go.bug.st/serial/enumerator"
)

// Errors
var (
	ErrNoCable       = errors.New("no programming cable found")
	ErrNoPort        = errors.New("no serial port for cable")
	ErrBadSelector   = errors.New("invalid cable selector")
	ErrAmbiguousPort = errors.New("cable matches several serial ports")
)

// Bridge identifies a USB-serial bridge chip
type Bridge struct {
	Vendor  gousb.ID
	Product gousb.ID
	Name    string
}

// KnownBridges are the bridge chips found in K5-style programming cables
var KnownBridges = []Bridge{
	{Vendor: 0x1a86, Product: 0x7523, Name: "CH340"},
	{Vendor: 0x10c4, Product: 0xea60, Name: "CP210x"},
	{Vendor: 0x067b, Product: 0x2303, Name: "PL2303"},
	{Vendor: 0x0403, Product: 0x6001, Name: "FT232R"},
	{Vendor: 0x0403, Product: 0x6015, Name: "FT231X"},
}

// LookupBridge returns the known bridge for a vendor/product pair
func LookupBridge(vendor, product gousb.ID) (Bridge, bool) {
	for _, b := range KnownBridges {
		if b.Vendor == vendor && b.Product == product {
			return b, true
		}
	}
	return Bridge{}, false
}

// Cable is one connected programming cable
type Cable struct {
	Bridge       Bridge
	Manufacturer string
	Product      string
	Serial       string
	Bus          int
	Address      int
}

// String returns a one-line description
func (c Cable) String() string {
	name := strings.TrimSpace(c.Manufacturer + " " + c.Product)
	if name == "" {
		name = c.Bridge.Name
	}
	return fmt.Sprintf("%s [%s %s:%s] bus %d addr %d (Serial: %s)",
		name, c.Bridge.Name, c.Bridge.Vendor, c.Bridge.Product, c.Bus, c.Address, c.Serial)
}

// FindCables lists every connected cable with a known bridge chip. The
// devices are only opened long enough to read their string descriptors.
func FindCables(ctx *gousb.Context) ([]Cable, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := LookupBridge(desc.Vendor, desc.Product)
		return ok
	})
	// OpenDevices reports per-device open failures but still returns the rest
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	cables := make([]Cable, 0, len(devices))
	for _, dev := range devices {
		bridge, _ := LookupBridge(dev.Desc.Vendor, dev.Desc.Product)
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()
		serial, _ := dev.SerialNumber()

		cables = append(cables, Cable{
			Bridge:       bridge,
			Manufacturer: manufacturer,
			Product:      product,
			Serial:       serial,
			Bus:          dev.Desc.Bus,
			Address:      dev.Desc.Address,
		})
		dev.Close()
	}

	return cables, nil
}

// PortFor finds the serial port a cable exposes among the host's ports
func PortFor(c Cable, ports []*enumerator.PortDetails) (string, error) {
	var matches []string
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if !strings.EqualFold(p.VID, c.Bridge.Vendor.String()) || !strings.EqualFold(p.PID, c.Bridge.Product.String()) {
			continue
		}
		if c.Serial != "" && p.SerialNumber != "" && p.SerialNumber != c.Serial {
			continue
		}
		matches = append(matches, p.Name)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNoPort, c)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguousPort, strings.Join(matches, ", "))
}

// ResolvePort picks a cable with sel and returns its serial port name
func ResolvePort(ctx *gousb.Context, sel Selector) (string, Cable, error) {
	cables, err := FindCables(ctx)
	if err != nil {
		return "", Cable{}, err
	}
	c, err := Select(cables, sel)
	if err != nil {
		return "", Cable{}, err
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", c, fmt.Errorf("failed to list serial ports: %w", err)
	}
	port, err := PortFor(c, ports)
	return port, c, err
}

// Reset issues a USB port reset to the cable picked by sel. Bridges that
// stop answering after the radio is power cycled usually recover from this.
func Reset(ctx *gousb.Context, sel Selector) (Cable, error) {
	cables, err := FindCables(ctx)
	if err != nil {
		return Cable{}, err
	}
	c, err := Select(cables, sel)
	if err != nil {
		return Cable{}, err
	}

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == c.Bus && desc.Address == c.Address
	})
	defer func() {
		for _, dev := range devices {
			dev.Close()
		}
	}()
	if len(devices) == 0 {
		if err == nil {
			err = ErrNoCable
		}
		return c, fmt.Errorf("failed to open %s: %w", c, err)
	}

	if err := devices[0].Reset(); err != nil {
		return c, fmt.Errorf("reset %s: %w", c, err)
	}
	return c, nil
}
