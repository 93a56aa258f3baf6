package cable

import (
	"fmt"
	"strconv"
	"strings"
)

// Selector specifies which cable to use
// Supported formats:
//   - ""           : first cable found
//   - "serial"     : match by USB serial number
//   - "bus:addr"   : match by USB bus and address (e.g., "1:10")
//   - "#N"         : Nth cable, 0-indexed (e.g., "#0", "#1")
type Selector string

// Select returns the cable in cables matching sel
func Select(cables []Cable, sel Selector) (Cable, error) {
	if len(cables) == 0 {
		return Cable{}, ErrNoCable
	}

	s := string(sel)
	switch {
	case s == "":
		return cables[0], nil

	case strings.HasPrefix(s, "#"):
		index, err := strconv.Atoi(s[1:])
		if err != nil {
			return Cable{}, fmt.Errorf("%w: index %q", ErrBadSelector, s)
		}
		if index < 0 || index >= len(cables) {
			return Cable{}, fmt.Errorf("cable index %d out of range (found %d cables)", index, len(cables))
		}
		return cables[index], nil

	case strings.Contains(s, ":"):
		busStr, addrStr, _ := strings.Cut(s, ":")
		bus, err := strconv.Atoi(busStr)
		if err != nil {
			return Cable{}, fmt.Errorf("%w: bus %q", ErrBadSelector, busStr)
		}
		addr, err := strconv.Atoi(addrStr)
		if err != nil {
			return Cable{}, fmt.Errorf("%w: address %q", ErrBadSelector, addrStr)
		}
		for _, c := range cables {
			if c.Bus == bus && c.Address == addr {
				return c, nil
			}
		}
		return Cable{}, fmt.Errorf("%w at bus %d address %d", ErrNoCable, bus, addr)
	}

	var matches []Cable
	for _, c := range cables {
		if c.Serial == s {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return Cable{}, fmt.Errorf("%w with serial %s", ErrNoCable, s)
	case 1:
		return matches[0], nil
	}
	return Cable{}, fmt.Errorf("multiple cables (%d) found with serial %s; use bus:addr format (e.g., 1:10) or index format (e.g., #0)", len(matches), s)
}

// SelectorUsage describes the selector formats for command-line help
func SelectorUsage() string {
	return `Cable selector. Formats:
    ""        - Use first cable found
    "serial"  - Match by USB serial number
    "bus:addr"- Match by USB location (e.g., "1:10")
    "#N"      - Use Nth cable, 0-indexed (e.g., "#0", "#1")`
}
