// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pcie is the SoC glue for the LS1024A PCIe root complex ports: it
// sequences resets, clocks and the serdes phy into a working state, drives
// the DesignWare core's link training, and demuxes the shared port
// interrupt into the 13 slot mux domain.
package pcie

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a/clk"
	"github.com/platinasystems/ls1024a/dw"
	"github.com/platinasystems/ls1024a/irqmux"
	"github.com/platinasystems/ls1024a/phy"
	"github.com/platinasystems/ls1024a/regmap"
	"github.com/platinasystems/ls1024a/reset"
)

const (
	CompatPcie = "fsl,ls1024a-pcie"
	CompatCtrl = "fsl,ls1024a-pci-usb-ctrl"
)

var (
	ErrPortIndex  = errors.New("missing or invalid port index")
	ErrNoAppRegs  = errors.New("no pci ctrl syscon regmap")
	ErrNoPhy      = errors.New("no available phy")
	ErrNoIntcNode = errors.New("interrupt controller node not found")
)

// Controller is one root complex port. It owns its clock, phy and reset
// handles for its lifetime; the application register block, the devicetree
// and the upstream interrupt line are borrowed.
type Controller struct {
	Port    *dw.Port
	Clk     clk.Clock
	Phy     phy.Phy
	Resets  reset.Group
	AppRegs *regmap.Map
	Domain  *irqmux.Domain
	Line    irqmux.Line
	Index   uint

	counts [NumSlots]uint64
}

func (c *Controller) Name() string { return fmt.Sprintf("pcie%d", c.Index) }

// IntrCount reports how many times a mux slot has been seen asserted.
func (c *Controller) IntrCount(slot uint) uint64 {
	if slot >= NumSlots {
		return 0
	}
	return atomic.LoadUint64(&c.counts[slot])
}

func (c *Controller) assertResets() (err error) {
	if err = c.Resets.Assert(); err != nil {
		log.Print(c.Name(), ": failed to assert resets: ", err)
	}
	return
}

func (c *Controller) deassertResets() (err error) {
	if err = c.Resets.Deassert(); err != nil {
		log.Print(c.Name(), ": failed to deassert resets: ", err)
	}
	return
}

// Sts0 and Sts3Reg expose the raw status registers for inspection tools.
func (c *Controller) Sts0() (uint32, error) {
	return c.AppRegs.Read(StsReg(c.Index, 0))
}

func (c *Controller) Sts3Reg() (uint32, error) {
	return c.AppRegs.Read(Sts3(c.Index))
}

func (c *Controller) Cfg5() (uint32, error) {
	return c.AppRegs.Read(CfgReg(c.Index, 5))
}
