// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regmap provides synchronized access to memory mapped register
// blocks that are shared between several consumers, in the manner of a
// syscon region. Every read-modify-write cycle runs under the map's own
// lock, so independent consumers may issue Update calls concurrently.
package regmap

import (
	"fmt"
	"sync"
)

// Io is the raw 32-bit register backing of a Map.
type Io interface {
	Read32(off uint32) (uint32, error)
	Write32(off uint32, v uint32) error
}

type Map struct {
	mutex sync.Mutex
	io    Io
}

func New(io Io) *Map { return &Map{io: io} }

func (m *Map) Read(off uint32) (v uint32, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.io.Read32(off)
}

func (m *Map) Write(off uint32, v uint32) (err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.io.Write32(off, v)
}

// Update rewrites the masked bits of a register, leaving the rest of the
// register untouched. The whole cycle holds the map lock.
func (m *Map) Update(off uint32, mask uint32, bits uint32) (err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	v, err := m.io.Read32(off)
	if err != nil {
		return
	}
	return m.io.Write32(off, (v&^mask)|(bits&mask))
}

// Buffer is a RAM backed Io, handy for loopback use.
type Buffer struct {
	b []byte
}

func NewBuffer(size uint32) *Buffer { return &Buffer{b: make([]byte, size)} }

func (r *Buffer) Read32(off uint32) (v uint32, err error) {
	if off&3 != 0 || int(off)+4 > len(r.b) {
		err = fmt.Errorf("regmap: read offset 0x%x out of range", off)
		return
	}
	b := r.b[off:]
	v = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return
}

func (r *Buffer) Write32(off uint32, v uint32) (err error) {
	if off&3 != 0 || int(off)+4 > len(r.b) {
		return fmt.Errorf("regmap: write offset 0x%x out of range", off)
	}
	b := r.b[off:]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	return
}
