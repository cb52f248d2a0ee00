// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package reset sequences the LS1024A PCIe reset lines. A port has three
// independent lines (register block, power, AXI) that must be asserted and
// deasserted in strict order; a failed deassert must leave the port fully
// asserted again, since a half-deasserted port is not safe on the bus.
package reset

import (
	"fmt"

	"github.com/platinasystems/log"
)

// Control is one reset line. Assert holds the downstream logic in reset.
type Control interface {
	Assert() error
	Deassert() error
}

// Group holds a port's reset lines.
type Group struct {
	Regs  Control
	Power Control
	Axi   Control
}

// Assert puts every line into reset: regs, then power, then AXI. The first
// failing line aborts the sequence.
func (g *Group) Assert() (err error) {
	if err = g.Regs.Assert(); err != nil {
		return fmt.Errorf("assert regs reset: %w", err)
	}
	if err = g.Power.Assert(); err != nil {
		return fmt.Errorf("assert power reset: %w", err)
	}
	if err = g.Axi.Assert(); err != nil {
		return fmt.Errorf("assert axi reset: %w", err)
	}
	return
}

// Deassert releases the lines in the reverse order of Assert. If any step
// fails, the lines already released are asserted again before returning, so
// the port is never left partially out of reset.
func (g *Group) Deassert() (err error) {
	if err = g.Axi.Deassert(); err != nil {
		err = fmt.Errorf("deassert axi reset: %w", err)
		g.reassert()
		return
	}
	if err = g.Power.Deassert(); err != nil {
		err = fmt.Errorf("deassert power reset: %w", err)
		g.reassert()
		return
	}
	if err = g.Regs.Deassert(); err != nil {
		err = fmt.Errorf("deassert regs reset: %w", err)
		g.reassert()
		return
	}
	return
}

// Asserting an already asserted line is idempotent, so rollback just runs
// the full assert sequence again.
func (g *Group) reassert() {
	if err := g.Assert(); err != nil {
		log.Print("reset: rollback assert failed: ", err)
	}
}
