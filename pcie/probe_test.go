// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcie

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/platinasystems/fdt"

	"github.com/platinasystems/ls1024a/irqmux"
	"github.com/platinasystems/ls1024a/phy"
	"github.com/platinasystems/ls1024a/regmap"
)

type seqPhy struct {
	seq    *[]string
	failOn string
	err    error
}

func (p *seqPhy) op(name string) error {
	*p.seq = append(*p.seq, "phy "+name)
	if p.failOn == name {
		return p.err
	}
	return nil
}

func (p *seqPhy) Init() error            { return p.op("init") }
func (p *seqPhy) SetMode(phy.Mode) error { return p.op("mode") }
func (p *seqPhy) PowerOn() error         { return p.op("on") }
func (p *seqPhy) PowerOff() error        { return p.op("off") }
func (p *seqPhy) Exit() error            { return p.op("exit") }

type deferPhys struct{}

func (deferPhys) Get(string) (phy.Phy, error) { return nil, phy.ErrNotReady }

type recLine struct {
	seq *[]string
	err error
}

func (l *recLine) Request(string, irqmux.LineFlag, irqmux.LineHandler) error {
	*l.seq = append(*l.seq, "line request")
	return l.err
}

func (l *recLine) Free() error {
	*l.seq = append(*l.seq, "line free")
	return nil
}

type recLines struct{ line *recLine }

func (p recLines) Line(*fdt.Node) (irqmux.Line, error) { return p.line, nil }

// testConfig assembles a port 0 config whose handles all record into seq.
// The link status starts as up so the bounded link wait returns at once.
func testConfig(seq *[]string) (*Config, *traceIo) {
	io := newTraceIo(AppRegsSize)
	app := regmap.New(io)
	mustWrite(app, StsReg(0, 0), Sts0RdlhLinkUp)
	cfg := &Config{
		Index:   0,
		AppRegs: app,
		MapDBI: func() (*regmap.Map, error) {
			*seq = append(*seq, "map dbi")
			return regmap.New(regmap.NewBuffer(0x1000)), nil
		},
		Clk:         &fakeClock{seq: seq},
		Phys:        phy.Static{phyName: &seqPhy{seq: seq}},
		Resets:      seqGroup(seq),
		Root:        testTree(),
		Lines:       recLines{&recLine{seq: seq}},
		LinkTimeout: 10 * time.Millisecond,
	}
	return cfg, io
}

func wantSeq(t *testing.T, seq []string, want ...string) {
	t.Helper()
	if strings.Join(seq, ",") != strings.Join(want, ",") {
		t.Errorf("wrong sequence:\n got %q\nwant %q", seq, want)
	}
}

func TestProbe(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)

	c, err := Probe(cfg)
	if err != nil {
		t.Fatal("probe:", err)
	}
	wantSeq(t, seq,
		"assert regs", "assert power", "assert axi",
		"clk enable",
		"phy init", "phy mode", "phy on",
		"deassert axi", "deassert power", "deassert regs",
		"map dbi",
		"line request")
	if c.Port.DBI == nil {
		t.Error("dbi regs not mapped")
	}
	if c.Domain == nil || c.Domain.Size() != NumSlots {
		t.Error("interrupt domain not set up")
	}

	seq = nil
	c.Resets = seqGroup(&seq)
	if err = c.Close(); err != nil {
		t.Error("close:", err)
	}
	wantSeq(t, seq,
		"line free",
		"assert regs", "assert power", "assert axi",
		"phy off", "phy exit",
		"clk disable")
}

func TestProbeInvalidIndex(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	cfg.Index = 2

	c, err := Probe(cfg)
	if !errors.Is(err, ErrPortIndex) {
		t.Error("wrong error:", err)
	}
	if c != nil {
		t.Error("controller returned on error")
	}
	wantSeq(t, seq)
}

func TestProbeNoAppRegs(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	cfg.AppRegs = nil

	if _, err := Probe(cfg); !errors.Is(err, ErrNoAppRegs) {
		t.Error("wrong error:", err)
	}
	wantSeq(t, seq)
}

func TestProbePhyDeferred(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	cfg.Phys = deferPhys{}

	c, err := Probe(cfg)
	if !errors.Is(err, phy.ErrNotReady) {
		t.Error("deferral not propagated:", err)
	}
	if err != phy.ErrNotReady {
		t.Error("deferral wrapped:", err)
	}
	if c != nil {
		t.Error("controller returned on deferral")
	}
	// nothing moved; the probe can be retried from scratch
	wantSeq(t, seq)
}

func TestProbeNoPhy(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	cfg.Phys = phy.Static{}

	if _, err := Probe(cfg); !errors.Is(err, ErrNoPhy) {
		t.Error("wrong error:", err)
	}
	wantSeq(t, seq)
}

func TestProbeClockFailure(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	cfg.Clk = &fakeClock{seq: &seq, err: errors.New("no gate")}

	if _, err := Probe(cfg); err == nil {
		t.Fatal("probe succeeded without a clock")
	}
	// resets stay asserted: that is the parked state
	wantSeq(t, seq,
		"assert regs", "assert power", "assert axi",
		"clk enable")
}

func TestProbePhyFailure(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	cfg.Phys = phy.Static{
		phyName: &seqPhy{seq: &seq, failOn: "init", err: errors.New("stuck")},
	}

	if _, err := Probe(cfg); err == nil {
		t.Fatal("probe succeeded without a phy")
	}
	wantSeq(t, seq,
		"assert regs", "assert power", "assert axi",
		"clk enable",
		"phy init",
		"clk disable")
}

func TestProbeDeassertFailure(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	g := seqGroup(&seq)
	g.Axi.(*seqLine).failOn = "deassert"
	g.Axi.(*seqLine).err = errors.New("held")
	cfg.Resets = g

	if _, err := Probe(cfg); err == nil {
		t.Fatal("probe succeeded with a held reset")
	}
	wantSeq(t, seq,
		"assert regs", "assert power", "assert axi",
		"clk enable",
		"phy init", "phy mode", "phy on",
		// the failed release rolls everything back into reset
		"deassert axi",
		"assert regs", "assert power", "assert axi",
		"phy off", "phy exit",
		"clk disable")
}

func TestProbeDbiFailure(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	cfg.MapDBI = func() (*regmap.Map, error) {
		seq = append(seq, "map dbi")
		return nil, errors.New("bus fault")
	}

	if _, err := Probe(cfg); err == nil {
		t.Fatal("probe succeeded without dbi regs")
	}
	wantSeq(t, seq,
		"assert regs", "assert power", "assert axi",
		"clk enable",
		"phy init", "phy mode", "phy on",
		"deassert axi", "deassert power", "deassert regs",
		"map dbi",
		"assert regs", "assert power", "assert axi",
		"phy off", "phy exit",
		"clk disable")
}

func TestProbeNoIntcNode(t *testing.T) {
	var seq []string
	cfg, _ := testConfig(&seq)
	cfg.Root = node("", nil)

	if _, err := Probe(cfg); !errors.Is(err, ErrNoIntcNode) {
		t.Error("wrong error:", err)
	}
	wantSeq(t, seq,
		"assert regs", "assert power", "assert axi",
		"clk enable",
		"phy init", "phy mode", "phy on",
		"deassert axi", "deassert power", "deassert regs",
		"map dbi",
		"assert regs", "assert power", "assert axi",
		"phy off", "phy exit",
		"clk disable")
}
