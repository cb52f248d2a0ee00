// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package clk models the clock inputs of the LS1024A PCIe ports.
package clk

import "github.com/platinasystems/ls1024a/regmap"

type Clock interface {
	Enable() error
	Disable()
}

// Gate is a clock gated by one bit of a clkcore block register. A set bit
// enables the clock.
type Gate struct {
	Map *regmap.Map
	Off uint32
	Bit uint32
}

func (g *Gate) Enable() error { return g.Map.Update(g.Off, g.Bit, g.Bit) }

func (g *Gate) Disable() { g.Map.Update(g.Off, g.Bit, 0) }

// Fixed is an always-on clock with no gate to drive.
type Fixed struct{}

func (Fixed) Enable() error { return nil }
func (Fixed) Disable()      {}
