// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regmap

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mem is an Io over a mmapped physical register range.
type Mem struct {
	mem  []byte
	regs []byte // mem adjusted for the sub-page offset of base
	size uint32
}

var DevMem = "/dev/mem"

// OpenMem maps size bytes of physical address space starting at base.
func OpenMem(base uint64, size uint32) (m *Mem, err error) {
	f, err := os.OpenFile(DevMem, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return
	}
	defer f.Close()

	pg := uint64(os.Getpagesize())
	off := base &^ (pg - 1)
	skew := base - off
	n := (uint64(size) + skew + pg - 1) &^ (pg - 1)

	mem, err := unix.Mmap(int(f.Fd()), int64(off), int(n),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		err = fmt.Errorf("mmap 0x%x[0x%x]: %w", base, size, err)
		return
	}
	m = &Mem{mem: mem, regs: mem[skew:], size: size}
	return
}

func (m *Mem) Close() (err error) {
	if m.mem != nil {
		err = unix.Munmap(m.mem)
		m.mem = nil
		m.regs = nil
	}
	return
}

func (m *Mem) check(off uint32) error {
	if off&3 != 0 || off+4 > m.size {
		return fmt.Errorf("regmap: offset 0x%x out of mapped range 0x%x",
			off, m.size)
	}
	return nil
}

// Register access must be a single aligned 32-bit transaction on the bus,
// so go through a volatile-style pointer load/store rather than copy().
func (m *Mem) Read32(off uint32) (v uint32, err error) {
	if err = m.check(off); err != nil {
		return
	}
	p := (*uint32)(unsafe.Pointer(&m.regs[off]))
	v = atomic.LoadUint32(p)
	return
}

func (m *Mem) Write32(off uint32, v uint32) (err error) {
	if err = m.check(off); err != nil {
		return
	}
	p := (*uint32)(unsafe.Pointer(&m.regs[off]))
	atomic.StoreUint32(p, v)
	return
}
