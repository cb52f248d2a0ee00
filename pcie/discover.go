// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcie

import (
	"fmt"
	"sort"

	"github.com/platinasystems/fdt"

	"github.com/platinasystems/ls1024a/clk"
	"github.com/platinasystems/ls1024a/dtb"
	"github.com/platinasystems/ls1024a/irqmux"
	"github.com/platinasystems/ls1024a/phy"
	"github.com/platinasystems/ls1024a/regmap"
	"github.com/platinasystems/ls1024a/reset"
	"github.com/platinasystems/ls1024a/uio"
)

// CompatClkcore is the clock and reset block of the SoC; the PCIe gates
// and reset lines live there.
const CompatClkcore = "fsl,ls1024a-clkcore"

// clkcore register layout for the pcie ports
const (
	clkcoreAxiClkCntrl = 0x48 // axi clock gates
	clkcoreAxiReset    = 0x54 // axi reset lines
	clkcorePcieReset   = 0xa8 // per-port power and register block resets
)

func pcieAxiBit(port uint32) uint32  { return 1 << (5 + port) }
func pciePwrBit(port uint32) uint32  { return 1 << (2 * port) }
func pcieRegsBit(port uint32) uint32 { return 1 << (2*port + 1) }

// overridable for tests
var openMem = func(base uint64, size uint32) (regmap.Io, error) {
	return regmap.OpenMem(base, size)
}

// UioLines resolves an interrupt controller node to its uio device.
var UioLines LineProvider = uioLines{}

type uioLines struct{}

func (uioLines) Line(n *fdt.Node) (irqmux.Line, error) {
	idx, found := dtb.PropU32(n, "linux,uio-index")
	if !found {
		return nil, fmt.Errorf("%s: no linux,uio-index property", n.Name)
	}
	return &uio.Line{Index: uint(idx), Rearm: true}, nil
}

func enabled(n *fdt.Node) bool {
	s, found := dtb.PropString(n, "status")
	return !found || s == "okay" || s == "ok"
}

// Discover assembles a Config for every enabled pcie node in the tree. It
// acquires the shared syscon and clkcore mappings but performs no port
// hardware operation; that is Probe's business.
func Discover(root *fdt.Node) (cfgs []*Config, err error) {
	ctrl := dtb.FindCompatible(root, CompatCtrl)
	if ctrl == nil {
		err = ErrNoAppRegs
		return
	}
	base, size, found := dtb.RegRange(ctrl, 0)
	if !found {
		err = fmt.Errorf("%s: no reg range", ctrl.Name)
		return
	}
	io, err := openMem(base, uint32(size))
	if err != nil {
		err = fmt.Errorf("map pci ctrl regs: %w", err)
		return
	}
	app := regmap.New(io)

	clkcore := dtb.FindCompatible(root, CompatClkcore)
	if clkcore == nil {
		err = fmt.Errorf("no %s node", CompatClkcore)
		return
	}
	base, size, found = dtb.RegRange(clkcore, 0)
	if !found {
		err = fmt.Errorf("%s: no reg range", clkcore.Name)
		return
	}
	io, err = openMem(base, uint32(size))
	if err != nil {
		err = fmt.Errorf("map clkcore regs: %w", err)
		return
	}
	clkRegs := regmap.New(io)

	dtb.EachCompatible(root, CompatPcie, func(n *fdt.Node) {
		if err != nil || !enabled(n) {
			return
		}
		var cfg *Config
		cfg, err = portConfig(n, root, app, clkRegs)
		if err == nil {
			cfgs = append(cfgs, cfg)
		}
	})
	// tree walk order is not the port order
	sort.Slice(cfgs, func(i, j int) bool {
		return cfgs[i].Index < cfgs[j].Index
	})
	return
}

func portConfig(n, root *fdt.Node, app, clkRegs *regmap.Map) (cfg *Config, err error) {
	idx, found := dtb.PropU32(n, "fsl,port-index")
	if !found || idx > 1 {
		err = fmt.Errorf("%s: %w", n.Name, ErrPortIndex)
		return
	}
	dbiBase, dbiSize, found := dtb.RegByName(n, "dbi")
	if !found {
		err = fmt.Errorf("%s: no dbi reg range", n.Name)
		return
	}
	cfg = &Config{
		Index:   idx,
		AppRegs: app,
		MapDBI: func() (*regmap.Map, error) {
			io, err := openMem(dbiBase, uint32(dbiSize))
			if err != nil {
				return nil, err
			}
			return regmap.New(io), nil
		},
		Clk: &clk.Gate{
			Map: clkRegs,
			Off: clkcoreAxiClkCntrl,
			Bit: pcieAxiBit(idx),
		},
		Phys: phy.Static{phyName: phy.Fixed{}},
		Resets: reset.Group{
			Axi: &reset.Bit{
				Map: clkRegs,
				Off: clkcoreAxiReset,
				Bit: pcieAxiBit(idx),
			},
			Power: &reset.Bit{
				Map: clkRegs,
				Off: clkcorePcieReset,
				Bit: pciePwrBit(idx),
			},
			Regs: &reset.Bit{
				Map: clkRegs,
				Off: clkcorePcieReset,
				Bit: pcieRegsBit(idx),
			},
		},
		Root:  root,
		Lines: UioLines,
	}
	return
}
