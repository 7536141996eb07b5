package main

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/c35s/radeonfb/dump"
	"github.com/c35s/radeonfb/radeon"
	"github.com/c35s/radeonfb/sim"
)

// device is what run drives: a mapped PCI function or a simulation.
type device struct {
	cfg         radeon.Config
	interactive bool
	close       func() error
}

func openDevice(ctx context.Context, o options) (*device, error) {
	if o.dump == "" {
		return openLive(ctx, o.dev)
	}

	b, err := readURL(o.dump)
	if err != nil {
		return nil, err
	}

	dd, err := dump.Read(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	sd, err := sim.FromDump(dd, sim.Options{})
	if err != nil {
		return nil, err
	}

	slog.Info("radeonfb: simulating", "dump", o.dump, "arch", dd.Arch, "model", dd.Model)

	return &device{
		cfg: radeon.Config{
			Arch:  dd.Arch,
			Model: dd.Model,
			Regs:  sd,
			RAM:   sd.RAM(),
			ROM:   dd.ROM,
		},

		close: func() error {
			slog.Debug("radeonfb: simulation done", "writes", len(sd.Trace()), "blits", sd.Blits())
			return sd.Err()
		},
	}, nil
}
