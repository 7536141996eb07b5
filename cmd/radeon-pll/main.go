// radeon-pll prints the PLL dividers the driver would program for a range of
// pixel clocks or for named modes.
//
//	radeon-pll -arch RV250 1024x768@60 1280x1024@75
//	radeon-pll -rom vbios.rom -from 25000 -to 165000 -step 5000
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/c35s/radeonfb/bios"
	"github.com/c35s/radeonfb/radeon"
)

func main() {
	var (
		archName = flag.String("arch", "R200", "use this chip family's PLL defaults")
		romPath  = flag.String("rom", "", "take the PLL constants from this video BIOS image")
		from     = flag.Int("from", 25000, "start of the sweep in kHz")
		to       = flag.Int("to", 200000, "end of the sweep in kHz")
		step     = flag.Int("step", 5000, "sweep step in kHz")
	)

	flag.Parse()

	arch, err := radeon.ParseArch(*archName)
	if err != nil {
		panic(err)
	}

	pll := arch.DefaultPLL()

	if *romPath != "" {
		rom, err := os.ReadFile(*romPath)
		if err != nil {
			panic(err)
		}

		if err := bios.Verify(rom); err != nil {
			slog.Warn("radeon-pll: ROM signature check failed", "err", err)
		}

		info, err := bios.Parse(rom)
		if err != nil {
			panic(err)
		}

		pll = radeon.PLLInfoFromBIOS(info.PLL, pll)
	}

	fmt.Printf("# %v: ref %d0 kHz / %d, VCO %d0-%d0 kHz\n", arch, pll.RefClock, pll.RefDiv, pll.MinFreq, pll.MaxFreq)

	var targets []string
	if flag.NArg() > 0 {
		targets = flag.Args()
	} else if *step > 0 {
		for f := *from; f <= *to; f += *step {
			targets = append(targets, strconv.Itoa(f))
		}
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "target\tkHz\tpost\tfb\tref\tPPLL_DIV\tactual kHz\terror\t")

	for _, t := range targets {
		khz, err := strconv.Atoi(t)
		if err != nil {
			m, err := radeon.ParseMode(t)
			if err != nil {
				panic(err)
			}

			khz = m.PixelFreq
		}

		d, err := radeon.ComputeDividers(khz/10, pll)
		if err != nil {
			fmt.Fprintf(tw, "%s\t%d\t%v\t\t\t\t\t\t\n", t, khz, err)
			continue
		}

		actual := d.Freq(pll) * 10
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%#x\t%d\t%+.2f%%\t\n",
			t, khz, d.Post(), d.Feedback, d.RefDiv, d.PLLDiv(), actual,
			100*float64(actual-khz)/float64(khz))
	}

	if err := tw.Flush(); err != nil {
		panic(err)
	}
}
