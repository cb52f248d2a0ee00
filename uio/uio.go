// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package uio binds /dev/uio devices as interrupt lines. A read returns
// once per interrupt; writing 1 back re-arms controllers that latch the
// line.
package uio

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/platinasystems/log"
	"golang.org/x/sys/unix"

	"github.com/platinasystems/ls1024a/irqmux"
)

// Dev is the device path pattern, taking the line index.
var Dev = "/dev/uio%d"

type Line struct {
	// Index is the uio minor, /dev/uio<Index>.
	Index uint
	// Rearm writes the irq enable word back after every interrupt.
	Rearm bool

	fd     int
	count  uint64
	closed uint32
	done   chan struct{}
}

// Count reports interrupts delivered so far.
func (l *Line) Count() uint64 { return atomic.LoadUint64(&l.count) }

func (l *Line) Request(name string, flags irqmux.LineFlag, h irqmux.LineHandler) (err error) {
	path := fmt.Sprintf(Dev, l.Index)
	l.fd, err = unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	l.done = make(chan struct{})
	go l.pump(name, h)
	return
}

func (l *Line) pump(name string, h irqmux.LineHandler) {
	defer close(l.done)
	var b [4]byte
	pfd := []unix.PollFd{{Fd: int32(l.fd), Events: unix.POLLIN}}
	for atomic.LoadUint32(&l.closed) == 0 {
		n, err := unix.Poll(pfd, 500)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Print(name, ": uio poll: ", err)
			return
		}
		if n == 0 {
			continue
		}
		if _, err = unix.Read(l.fd, b[:]); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		atomic.AddUint64(&l.count, 1)
		h()
		if l.Rearm {
			binary.LittleEndian.PutUint32(b[:], 1)
			if _, err = unix.Write(l.fd, b[:]); err != nil {
				log.Print(name, ": uio rearm: ", err)
				return
			}
		}
	}
}

func (l *Line) Free() (err error) {
	if l.done == nil {
		return
	}
	if atomic.CompareAndSwapUint32(&l.closed, 0, 1) {
		<-l.done
		err = unix.Close(l.fd)
		l.fd = -1
	}
	return
}
