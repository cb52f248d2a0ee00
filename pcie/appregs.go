// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pcie

import (
	"fmt"
	"strings"
)

// Application register block shared by both PCIe ports and the companion
// USB controller. Offsets are relative to the block and parameterized by
// port index; every access must go through the owning port's index.

func CfgReg(port, r uint) uint32 { return uint32(port*0x20 + r*4) }
func StsReg(port, r uint) uint32 { return uint32(0x40 + port*0xc + r*4) }
func Sts3(port uint) uint32      { return uint32(0x58 + port*4) }
func IntrSts(port uint) uint32   { return uint32(0x100 + port*0x10) }
func IntrEn(port uint) uint32    { return uint32(0x104 + port*0x10) }

// AppRegsSize covers both ports' registers.
const AppRegsSize = 0x200

const (
	Cfg0DevTypeMask = 0xf
	Cfg0DevTypeRC   = 0x4 // root complex
)

const (
	Cfg5AppInitRst  = 1 << 0
	Cfg5LtssmEn     = 1 << 1
	Cfg5AppRdyL23   = 1 << 2
	Cfg5LinkDownRst = 1 << 9
)

const (
	Sts0LinkReqRstNot = 1 << 0
	Sts0XmlhLinkUp    = 1 << 15 // phy layer only
	Sts0RdlhLinkUp    = 1 << 16 // data link layer
)

// Interrupt status and enable registers share one bit layout.
const (
	IntrIntaAssert = 1 << iota
	IntrIntaDeassert
	IntrIntbAssert
	IntrIntbDeassert
	IntrIntcAssert
	IntrIntcDeassert
	IntrIntdAssert
	IntrIntdDeassert
	IntrAer
	IntrPme
	IntrHotplug
	IntrLinkAutoBw
	IntrMsi
)

const IntrIntxAssert = IntrIntaAssert | IntrIntbAssert |
	IntrIntcAssert | IntrIntdAssert

// Slots of the interrupt mux domain. Numbered after the hardware bits so
// currently unused sources can be added without renumbering.
const (
	SlotIntA = 0
	SlotIntB = 2
	SlotIntC = 4
	SlotIntD = 6
	SlotMsi  = 12

	NumSlots = 13
)

var slotNames = map[uint]string{
	SlotIntA: "inta",
	SlotIntB: "intb",
	SlotIntC: "intc",
	SlotIntD: "intd",
	SlotMsi:  "msi",
}

func SlotName(slot uint) string {
	if s, found := slotNames[slot]; found {
		return s
	}
	return fmt.Sprintf("slot%d", slot)
}

func DecodeSts0(v uint32) string {
	s := []string{}
	if v&Sts0RdlhLinkUp != 0 {
		s = append(s, "rdlh-link-up")
	}
	if v&Sts0XmlhLinkUp != 0 {
		s = append(s, "xmlh-link-up")
	}
	if v&Sts0LinkReqRstNot != 0 {
		s = append(s, "link-req-rst-not")
	}
	if len(s) == 0 {
		return "down"
	}
	return strings.Join(s, " ")
}

func DecodeCfg5(v uint32) string {
	s := []string{}
	if v&Cfg5LtssmEn != 0 {
		s = append(s, "ltssm-en")
	}
	if v&Cfg5AppInitRst != 0 {
		s = append(s, "app-init-rst")
	}
	if v&Cfg5AppRdyL23 != 0 {
		s = append(s, "rdy-l23")
	}
	if v&Cfg5LinkDownRst != 0 {
		s = append(s, "link-down-rst")
	}
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, " ")
}
