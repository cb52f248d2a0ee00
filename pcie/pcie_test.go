// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcie

import (
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/fdt"

	"github.com/platinasystems/ls1024a/dw"
	"github.com/platinasystems/ls1024a/regmap"
	"github.com/platinasystems/ls1024a/reset"
)

// traceIo records every raw register access, interleaved with whatever
// else the test appends to the same trace.
type traceIo struct {
	mutex sync.Mutex
	mem   *regmap.Buffer
	trace []string
}

func newTraceIo(size uint32) *traceIo {
	return &traceIo{mem: regmap.NewBuffer(size)}
}

func (t *traceIo) log(s string) {
	t.mutex.Lock()
	t.trace = append(t.trace, s)
	t.mutex.Unlock()
}

func (t *traceIo) Read32(off uint32) (uint32, error) {
	t.log(fmt.Sprintf("r 0x%x", off))
	return t.mem.Read32(off)
}

func (t *traceIo) Write32(off uint32, v uint32) error {
	t.log(fmt.Sprintf("w 0x%x 0x%x", off, v))
	return t.mem.Write32(off, v)
}

func (t *traceIo) snapshot() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]string{}, t.trace...)
}

func (t *traceIo) reset() {
	t.mutex.Lock()
	t.trace = nil
	t.mutex.Unlock()
}

// testController returns a port 0 controller over a traced app register
// block, with a short link wait so timeouts don't stall tests.
func testController() (*Controller, *traceIo) {
	io := newTraceIo(AppRegsSize)
	c := &Controller{
		AppRegs: regmap.New(io),
		Index:   0,
	}
	c.Port = &dw.Port{
		Name:        c.Name(),
		Ops:         c,
		LinkTimeout: 10 * time.Millisecond,
	}
	return c, io
}

func mustWrite(m *regmap.Map, off, v uint32) {
	if err := m.Write(off, v); err != nil {
		panic(err)
	}
}

// devicetree builders

func node(name string, props map[string][]byte) *fdt.Node {
	if props == nil {
		props = make(map[string][]byte)
	}
	return &fdt.Node{
		Name:       name,
		Properties: props,
		Children:   make(map[string]*fdt.Node),
	}
}

func u32(vs ...uint32) (b []byte) {
	for _, v := range vs {
		b = append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	return
}

// testTree has the shared ctrl node with both ports' interrupt
// controllers, the clkcore node, and both pcie port nodes.
func testTree() *fdt.Node {
	root := node("", nil)
	ctrl := node("pci-usb-ctrl@fc000000", map[string][]byte{
		"compatible": []byte(CompatCtrl + "\x00syscon\x00"),
		"reg":        u32(0xfc000000, AppRegsSize),
	})
	for i := 0; i < 2; i++ {
		name := fmt.Sprintf("pcie%d-interrupt-controller", i)
		ctrl.Children[name] = node(name, map[string][]byte{
			"interrupts":      u32(uint32(93 + i)),
			"linux,uio-index": u32(uint32(i)),
		})
	}
	clkcore := node("clkcore@904b0000", map[string][]byte{
		"compatible": []byte(CompatClkcore + "\x00"),
		"reg":        u32(0x904b0000, 0x100),
	})
	root.Children[ctrl.Name] = ctrl
	root.Children[clkcore.Name] = clkcore
	for i := 0; i < 2; i++ {
		base := uint32(0x98000000 + i*0x4000000)
		name := fmt.Sprintf("pcie@%x", base)
		props := map[string][]byte{
			"compatible":     []byte(CompatPcie + "\x00"),
			"fsl,port-index": u32(uint32(i)),
			"reg":            u32(base, 0x4000),
			"reg-names":      []byte("dbi\x00"),
		}
		root.Children[name] = node(name, props)
	}
	return root
}

// probe fakes

type fakeClock struct {
	seq *[]string
	err error
}

func (c *fakeClock) Enable() error {
	*c.seq = append(*c.seq, "clk enable")
	return c.err
}

func (c *fakeClock) Disable() {
	*c.seq = append(*c.seq, "clk disable")
}

type seqLine struct {
	name   string
	seq    *[]string
	failOn string
	err    error
}

func (l *seqLine) Assert() error {
	*l.seq = append(*l.seq, "assert "+l.name)
	if l.failOn == "assert" {
		return l.err
	}
	return nil
}

func (l *seqLine) Deassert() error {
	*l.seq = append(*l.seq, "deassert "+l.name)
	if l.failOn == "deassert" {
		return l.err
	}
	return nil
}

func seqGroup(seq *[]string) reset.Group {
	return reset.Group{
		Regs:  &seqLine{name: "regs", seq: seq},
		Power: &seqLine{name: "power", seq: seq},
		Axi:   &seqLine{name: "axi", seq: seq},
	}
}
