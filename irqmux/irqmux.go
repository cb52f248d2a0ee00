// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package irqmux is a second level interrupt controller: a linear domain of
// hardware interrupt slots multiplexed onto one shared upstream line. Slot
// numbers follow the hardware and are intentionally sparse so unused slots
// can be taken into use later without renumbering.
//
// Dispatch runs in the upstream line's interrupt context, so the lookup
// path is array indexed, allocation free, and ordered against consumer
// registration with atomics rather than the domain lock.
package irqmux

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Chip masks and unmasks one hardware slot of the mux.
type Chip interface {
	Mask(hw uint)
	Unmask(hw uint)
}

// Handler services one virtual interrupt.
type Handler func()

// Result of a line handler. A shared line always reports Handled; other
// logical sources on the same line are serviced the same way.
type Result int

const (
	None Result = iota
	Handled
)

type LineHandler func() Result

type LineFlag uint

const (
	// Shared lets other devices bind the same physical line.
	Shared LineFlag = 1 << iota
	// NoThread keeps the handler in hard interrupt context.
	NoThread
)

// Line is the platform's upstream interrupt line.
type Line interface {
	Request(name string, flags LineFlag, h LineHandler) error
	Free() error
}

type slot struct {
	virq uint32       // 0 while unmapped
	h    atomic.Value // Handler, nil func while unrequested
}

type Domain struct {
	chip  Chip
	mutex sync.Mutex
	slots []slot
}

// Virtual interrupt numbers are allocated module wide so two domains never
// hand out the same number.
var nextVirq uint32

func NewDomain(nr uint, chip Chip) *Domain {
	d := &Domain{chip: chip, slots: make([]slot, nr)}
	for i := range d.slots {
		d.slots[i].h.Store(Handler(nil))
	}
	return d
}

func (d *Domain) Size() uint { return uint(len(d.slots)) }

// MapIrq allocates (or returns the already allocated) virtual interrupt for
// a hardware slot.
func (d *Domain) MapIrq(hw uint) (virq uint, err error) {
	if hw >= uint(len(d.slots)) {
		err = fmt.Errorf("irqmux: hw irq %d outside domain of %d",
			hw, len(d.slots))
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if v := d.slots[hw].virq; v != 0 {
		virq = uint(v)
		return
	}
	v := atomic.AddUint32(&nextVirq, 1)
	atomic.StoreUint32(&d.slots[hw].virq, v)
	virq = uint(v)
	return
}

// FindMapping returns the virtual interrupt of a hardware slot, or 0 when
// nothing has been mapped. Safe from interrupt context.
func (d *Domain) FindMapping(hw uint) (virq uint) {
	if hw >= uint(len(d.slots)) {
		return
	}
	return uint(atomic.LoadUint32(&d.slots[hw].virq))
}

func (d *Domain) lookup(virq uint) (hw uint, ok bool) {
	for i := range d.slots {
		if uint(atomic.LoadUint32(&d.slots[i].virq)) == virq {
			return uint(i), true
		}
	}
	return
}

// Request registers the consumer of a virtual interrupt and unmasks its
// slot.
func (d *Domain) Request(virq uint, h Handler) (err error) {
	if virq == 0 || h == nil {
		return fmt.Errorf("irqmux: bad request for virq %d", virq)
	}
	hw, ok := d.lookup(virq)
	if !ok {
		return fmt.Errorf("irqmux: virq %d not in this domain", virq)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if old, _ := d.slots[hw].h.Load().(Handler); old != nil {
		return fmt.Errorf("irqmux: virq %d already requested", virq)
	}
	d.slots[hw].h.Store(h)
	d.chip.Unmask(hw)
	return
}

// FreeIrq masks the slot and drops its consumer.
func (d *Domain) FreeIrq(virq uint) {
	hw, ok := d.lookup(virq)
	if !ok {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.chip.Mask(hw)
	d.slots[hw].h.Store(Handler(nil))
}

// Dispatch invokes the consumer of a virtual interrupt. An unknown or
// unrequested virq is a no-op; the feature is simply unused in this
// configuration. Safe from interrupt context.
func (d *Domain) Dispatch(virq uint) {
	if virq == 0 {
		return
	}
	for i := range d.slots {
		s := &d.slots[i]
		if uint(atomic.LoadUint32(&s.virq)) != virq {
			continue
		}
		if h, _ := s.h.Load().(Handler); h != nil {
			h()
		}
		return
	}
}
