// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcie

import (
	"github.com/platinasystems/log"
)

// LinkUp reads the port status register; only the data link layer bit
// counts. The state is observed fresh on every call, never cached, because
// the establish sequence keys each step off the current hardware state.
func (c *Controller) LinkUp() bool {
	v, err := c.AppRegs.Read(StsReg(c.Index, 0))
	if err != nil {
		log.Print(c.Name(), ": status read: ", err)
		return false
	}
	return v&Sts0RdlhLinkUp != 0
}

// establishLink programs root complex mode and restarts link training. The
// LTSSM is only safe to touch while the link is down, so both LTSSM steps
// re-check the live link state instead of trusting an earlier read.
func (c *Controller) establishLink() {
	if !c.LinkUp() {
		// hold the LTSSM off so the core can be reconfigured
		c.update(CfgReg(c.Index, 5), Cfg5LtssmEn, 0)
	}

	c.update(CfgReg(c.Index, 0), Cfg0DevTypeMask, Cfg0DevTypeRC)

	if !c.LinkUp() {
		// configuration done, restart training
		c.update(CfgReg(c.Index, 5),
			Cfg5LtssmEn|Cfg5AppInitRst,
			Cfg5LtssmEn|Cfg5AppInitRst)
	}

	if err := c.Port.WaitForLink(); err != nil {
		// Not fatal: the slot may be empty, or the link may come up
		// later. TODO revisit whether a link-down notification should
		// be raised here instead of just logging.
		log.Print(c.Name(), ": link not up after reconfiguration")
	}
}

// StartLink is the start-link callback handed to the DesignWare core.
func (c *Controller) StartLink() error {
	c.establishLink()
	return nil
}

func (c *Controller) update(off, mask, bits uint32) {
	if err := c.AppRegs.Update(off, mask, bits); err != nil {
		log.Print(c.Name(), ": app reg update: ", err)
	}
}
