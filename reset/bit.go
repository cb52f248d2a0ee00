// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package reset

import (
	"github.com/platinasystems/gpio"

	"github.com/platinasystems/ls1024a/regmap"
)

// Bit is a reset line controlled through one bit of a clkcore block
// register. A set bit holds the line in reset.
type Bit struct {
	Map *regmap.Map
	Off uint32
	Bit uint32
}

func (b *Bit) Assert() error   { return b.Map.Update(b.Off, b.Bit, b.Bit) }
func (b *Bit) Deassert() error { return b.Map.Update(b.Off, b.Bit, 0) }

// GpioLine is a reset line wired to a gpio pin, PERST# style. Such lines
// are usually active low.
type GpioLine struct {
	Pin       gpio.Pin
	ActiveLow bool
}

func (l *GpioLine) Assert() error   { return l.set(true) }
func (l *GpioLine) Deassert() error { return l.set(false) }

func (l *GpioLine) set(asserted bool) error {
	v := asserted
	if l.ActiveLow {
		v = !v
	}
	return l.Pin.SetValue(v)
}
