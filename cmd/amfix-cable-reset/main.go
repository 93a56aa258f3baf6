// amfix-cable-reset resets a USB programming cable to recover from USB errors
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gousb"
	"github.com/spf13/pflag"

	"github.com/herlein/amfix/pkg/cable"
)

func main() {
	cableSel := pflag.StringP("cable", "c", "", cable.SelectorUsage())
	attempts := pflag.IntP("attempts", "a", 3, "Number of attempts")
	pflag.Parse()

	ctx := gousb.NewContext()
	defer ctx.Close()

	// Try multiple times, the cable may still be enumerating
	for attempt := 0; attempt < *attempts; attempt++ {
		c, err := cable.Reset(ctx, cable.Selector(*cableSel))
		if err != nil {
			fmt.Printf("Attempt %d: %v\n", attempt+1, err)
			time.Sleep(time.Second)
			continue
		}

		fmt.Printf("Reset OK: %s\n", c)
		os.Exit(0)
	}

	fmt.Printf("Failed to find/reset cable after %d attempts\n", *attempts)
	os.Exit(1)
}
