// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package phy models the serdes lanes feeding the LS1024A PCIe ports.
package phy

import (
	"errors"
	"fmt"
)

type Mode int

const (
	ModeInvalid Mode = iota
	ModePCIe
	ModeSata
	ModeSgmii
)

// Phy is one serdes lane bundle.
type Phy interface {
	Init() error
	SetMode(m Mode) error
	PowerOn() error
	PowerOff() error
	Exit() error
}

// Provider hands out named phys. Get returns ErrNotReady while the lane is
// still being brought up by its own driver; callers are expected to retry
// the whole operation later. ErrNone means no such phy exists.
type Provider interface {
	Get(name string) (Phy, error)
}

var (
	ErrNotReady = errors.New("phy not ready, retry later")
	ErrNone     = errors.New("no such phy")
)

// Enable runs the bring-up sequence: init, pcie mode, power on. A failure
// after init exits the phy again so nothing is left half configured.
func Enable(p Phy) (err error) {
	if err = p.Init(); err != nil {
		return fmt.Errorf("phy init: %w", err)
	}
	if err = p.SetMode(ModePCIe); err != nil {
		p.Exit()
		return fmt.Errorf("phy set mode: %w", err)
	}
	if err = p.PowerOn(); err != nil {
		p.Exit()
		return fmt.Errorf("phy power on: %w", err)
	}
	return
}

// Disable is the inverse of Enable and is safe to call however far Enable
// got.
func Disable(p Phy) {
	p.PowerOff()
	p.Exit()
}
