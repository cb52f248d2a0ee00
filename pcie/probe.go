// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcie

import (
	"fmt"
	"time"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a/clk"
	"github.com/platinasystems/ls1024a/dw"
	"github.com/platinasystems/ls1024a/phy"
	"github.com/platinasystems/ls1024a/regmap"
	"github.com/platinasystems/ls1024a/reset"
)

// Config carries the resource handles of one port. All handles are
// acquired before any hardware is touched, so configuration errors and a
// not-ready phy surface before the port's resets or clock move.
type Config struct {
	// Index selects the port's register stride in the shared block; the
	// hardware has ports 0 and 1.
	Index uint32
	// AppRegs is the shared pci/usb-ctrl syscon block, borrowed.
	AppRegs *regmap.Map
	// MapDBI maps the core's own register block once the port is out of
	// reset; mapping earlier would fault on a held-off bus.
	MapDBI func() (*regmap.Map, error)
	Clk    clk.Clock
	Phys   phy.Provider
	Resets reset.Group
	// Root of the platform devicetree, for the interrupt controller
	// node lookup.
	Root  *fdt.Node
	Lines LineProvider

	LinkTimeout time.Duration
}

// Probe brings one port up in strict dependency order and returns it ready
// for enumeration. Every failure path unwinds exactly what was already
// done, leaving the hardware as it was before the call.
func Probe(cfg *Config) (c *Controller, err error) {
	if cfg.Index > 1 {
		err = fmt.Errorf("port %d: %w", cfg.Index, ErrPortIndex)
		return
	}
	if cfg.AppRegs == nil {
		err = ErrNoAppRegs
		return
	}

	c = &Controller{
		Clk:     cfg.Clk,
		Resets:  cfg.Resets,
		AppRegs: cfg.AppRegs,
		Index:   uint(cfg.Index),
	}
	c.Port = &dw.Port{
		Name:        c.Name(),
		Ops:         c,
		LinkTimeout: cfg.LinkTimeout,
	}

	if c.Phy, err = c.acquirePhy(cfg.Phys); err != nil {
		c = nil
		return
	}

	if err = c.assertResets(); err != nil {
		c = nil
		return
	}
	if err = c.Clk.Enable(); err != nil {
		// resets stay asserted, which is the safe state
		c = nil
		return
	}
	if err = c.enablePhy(); err != nil {
		goto failClk
	}
	if err = c.deassertResets(); err != nil {
		goto disablePhy
	}

	if c.Port.DBI, err = cfg.MapDBI(); err != nil {
		log.Print(c.Name(), ": couldn't map dbi regs: ", err)
		goto reset
	}

	if err = c.initIrq(cfg.Root, cfg.Lines); err != nil {
		goto reset
	}

	if err = (&dw.Host{Port: c.Port}).Init(); err != nil {
		log.Print(c.Name(), ": failed to initialize host: ", err)
		goto freeIrq
	}

	log.Print(c.Name(), ": probed")
	return

freeIrq:
	c.Line.Free()
reset:
	c.assertResets()
disablePhy:
	c.disablePhy()
failClk:
	c.Clk.Disable()
	c = nil
	return
}

// Close unbinds the port: interrupts off, hardware back in reset.
func (c *Controller) Close() (err error) {
	if c.Line != nil {
		if err = c.Line.Free(); err != nil {
			log.Print(c.Name(), ": free interrupt line: ", err)
		}
	}
	c.assertResets()
	c.disablePhy()
	c.Clk.Disable()
	log.Print(c.Name(), ": closed")
	return
}
