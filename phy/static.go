// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

// Static is a fixed name-to-phy table.
type Static map[string]Phy

func (s Static) Get(name string) (Phy, error) {
	if p, found := s[name]; found {
		return p, nil
	}
	return nil, ErrNone
}

// Fixed is a lane that needs no runtime programming; the boot loader has
// already configured the serdes.
type Fixed struct{}

func (Fixed) Init() error         { return nil }
func (Fixed) SetMode(Mode) error  { return nil }
func (Fixed) PowerOn() error      { return nil }
func (Fixed) PowerOff() error     { return nil }
func (Fixed) Exit() error         { return nil }
