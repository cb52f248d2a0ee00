// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcie

import (
	"fmt"
	"sync/atomic"

	"github.com/platinasystems/fdt"

	"github.com/platinasystems/ls1024a/dtb"
	"github.com/platinasystems/ls1024a/irqmux"
)

// LineProvider resolves an interrupt controller node to the platform's
// shared interrupt line.
type LineProvider interface {
	Line(n *fdt.Node) (irqmux.Line, error)
}

// FindIntcNode locates the per-port interrupt controller child under the
// shared pci/usb control node.
func FindIntcNode(root *fdt.Node, index uint) *fdt.Node {
	ctrl := dtb.FindCompatible(root, CompatCtrl)
	if ctrl == nil {
		return nil
	}
	name := fmt.Sprintf("pcie%d-interrupt-controller", index)
	return dtb.Child(ctrl, name)
}

// muxChip masks and unmasks slots through the port's interrupt enable
// register. The regmap serializes each read-modify-write, so chip calls
// are safe against the concurrently running demux handler.
type muxChip struct {
	c *Controller
}

func (m muxChip) Mask(hw uint)   { m.c.update(IntrEn(m.c.Index), 1<<hw, 0) }
func (m muxChip) Unmask(hw uint) { m.c.update(IntrEn(m.c.Index), 1<<hw, 1<<hw) }

func (c *Controller) initIrq(root *fdt.Node, lines LineProvider) (err error) {
	node := FindIntcNode(root, c.Index)
	if node == nil {
		return fmt.Errorf("%s: %w", c.Name(), ErrNoIntcNode)
	}

	c.Domain = irqmux.NewDomain(NumSlots, muxChip{c})

	c.Line, err = lines.Line(node)
	if err != nil {
		return fmt.Errorf("%s: interrupt line: %w", c.Name(), err)
	}

	err = c.Line.Request(c.Name()+"-intc", irqmux.Shared|irqmux.NoThread,
		c.Interrupt)
	if err != nil {
		return fmt.Errorf("%s: request interrupt: %w", c.Name(), err)
	}
	return
}

// Interrupt demuxes the shared port interrupt. It runs in the line's
// interrupt context: no blocking, no allocation, no logging.
//
// The status value is written back to acknowledge every flagged source
// before any dispatch; a source that re-asserts while its consumer runs
// must latch a fresh status bit rather than be cleared behind its back.
func (c *Controller) Interrupt() irqmux.Result {
	reg := IntrSts(c.Index)
	status, err := c.AppRegs.Read(reg)
	if err != nil {
		return irqmux.Handled
	}
	c.AppRegs.Write(reg, status)

	if status&IntrMsi != 0 {
		c.dispatch(SlotMsi)
	}
	if status&IntrIntxAssert != 0 {
		if status&IntrIntaAssert != 0 {
			c.dispatch(SlotIntA)
		}
		if status&IntrIntbAssert != 0 {
			c.dispatch(SlotIntB)
		}
		if status&IntrIntcAssert != 0 {
			c.dispatch(SlotIntC)
		}
		if status&IntrIntdAssert != 0 {
			c.dispatch(SlotIntD)
		}
	}

	// The line is shared; other logical sources are serviced the same
	// way, so this handler never reports the interrupt unhandled.
	return irqmux.Handled
}

func (c *Controller) dispatch(slot uint) {
	atomic.AddUint64(&c.counts[slot], 1)
	if virq := c.Domain.FindMapping(slot); virq != 0 {
		c.Domain.Dispatch(virq)
	}
}
