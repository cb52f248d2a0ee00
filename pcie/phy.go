// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcie

import (
	"errors"
	"fmt"

	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a/phy"
)

// The port's serdes lanes are handed out under the "bus" name.
const phyName = "bus"

// acquirePhy resolves the port's phy. A not-ready phy is propagated as is
// so the platform can retry the whole probe later; any other failure means
// running without a phy, which this controller does not support.
func (c *Controller) acquirePhy(phys phy.Provider) (p phy.Phy, err error) {
	p, err = phys.Get(phyName)
	if err != nil {
		if errors.Is(err, phy.ErrNotReady) {
			return
		}
		log.Print(c.Name(), ": no available phy")
		err = fmt.Errorf("%s: %w", c.Name(), ErrNoPhy)
	}
	return
}

func (c *Controller) enablePhy() (err error) {
	if err = phy.Enable(c.Phy); err != nil {
		log.Print(c.Name(), ": failed to initialize phy: ", err)
	}
	return
}

func (c *Controller) disablePhy() {
	phy.Disable(c.Phy)
}
