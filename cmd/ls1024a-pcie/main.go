// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Command ls1024a-pcie inspects and brings up the LS1024A PCIe root complex
// ports from the platform devicetree.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/ls1024a/dtb"
	"github.com/platinasystems/ls1024a/dw"
	"github.com/platinasystems/ls1024a/pcie"
	"github.com/platinasystems/ls1024a/phy"
)

const usage = `usage: ls1024a-pcie [-v] [-dtb FILE] [-port N] [-timeout DURATION] COMMAND

commands:
	status	decoded port status registers
	probe	bring the ports up
	link	restart link training on already probed ports`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ls1024a-pcie: ", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flag, args := flags.New(args, "-v")
	parm, args := parms.New(args, "-dtb", "-port", "-timeout")
	if len(args) != 1 {
		return errors.New(usage)
	}

	t, err := dtb.Load(parm.ByName["-dtb"])
	if err != nil {
		return err
	}
	cfgs, err := pcie.Discover(t.RootNode)
	if err != nil {
		return err
	}
	if s := parm.ByName["-port"]; s != "" {
		port, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("-port %s: %w", s, err)
		}
		cfgs = selectPort(cfgs, uint32(port))
		if len(cfgs) == 0 {
			return fmt.Errorf("port %d: %w", port, pcie.ErrPortIndex)
		}
	}
	timeout := time.Duration(0)
	if s := parm.ByName["-timeout"]; s != "" {
		if timeout, err = time.ParseDuration(s); err != nil {
			return fmt.Errorf("-timeout %s: %w", s, err)
		}
	}

	switch args[0] {
	case "status":
		return status(cfgs, flag.ByName["-v"])
	case "probe":
		return probe(cfgs, timeout)
	case "link":
		return link(cfgs, timeout)
	}
	return fmt.Errorf("%s: unknown command\n%s", args[0], usage)
}

func selectPort(cfgs []*pcie.Config, port uint32) []*pcie.Config {
	for _, cfg := range cfgs {
		if cfg.Index == port {
			return []*pcie.Config{cfg}
		}
	}
	return nil
}

// controller returns an unprobed view of the port, enough to read status
// registers and poke link training on hardware some earlier probe set up.
func controller(cfg *pcie.Config, timeout time.Duration) *pcie.Controller {
	c := &pcie.Controller{
		AppRegs: cfg.AppRegs,
		Index:   uint(cfg.Index),
	}
	c.Port = &dw.Port{
		Name:        c.Name(),
		Ops:         c,
		LinkTimeout: timeout,
	}
	return c
}

func status(cfgs []*pcie.Config, verbose bool) error {
	for _, cfg := range cfgs {
		c := controller(cfg, 0)
		sts0, err := c.Sts0()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", c.Name(), pcie.DecodeSts0(sts0))
		if !verbose {
			continue
		}
		cfg5, err := c.Cfg5()
		if err != nil {
			return err
		}
		sts3, err := c.Sts3Reg()
		if err != nil {
			return err
		}
		fmt.Printf("%s: sts0 0x%08x sts3 0x%08x\n", c.Name(), sts0, sts3)
		fmt.Printf("%s: cfg5 0x%08x (%s)\n", c.Name(), cfg5,
			pcie.DecodeCfg5(cfg5))
	}
	return nil
}

func probe(cfgs []*pcie.Config, timeout time.Duration) error {
	for _, cfg := range cfgs {
		cfg.LinkTimeout = timeout
		c, err := pcie.Probe(cfg)
		if err != nil {
			if errors.Is(err, phy.ErrNotReady) {
				return fmt.Errorf("pcie%d: %w", cfg.Index, err)
			}
			return err
		}
		state := "link down"
		if c.LinkUp() {
			state = "link up"
		}
		fmt.Printf("%s: probed, %s\n", c.Name(), state)
	}
	return nil
}

func link(cfgs []*pcie.Config, timeout time.Duration) error {
	for _, cfg := range cfgs {
		c := controller(cfg, timeout)
		if err := c.StartLink(); err != nil {
			return err
		}
		state := "link down"
		if c.LinkUp() {
			state = "link up"
		}
		fmt.Printf("%s: %s\n", c.Name(), state)
	}
	return nil
}
