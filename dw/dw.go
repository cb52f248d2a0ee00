// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dw is the slim DesignWare PCIe core abstraction the SoC glue
// plugs into: the glue provides link callbacks, the core provides the
// bounded link wait and the host bring-up entry point. Config space
// enumeration belongs to whatever host framework sits on top and is out of
// scope here.
package dw

import (
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"

	"github.com/platinasystems/ls1024a/regmap"
)

// Ops are the SoC specific link callbacks. LinkUp must observe hardware on
// every call, never a cached value.
type Ops interface {
	LinkUp() bool
	StartLink() error
}

type Port struct {
	Name string
	// DBI is the core's own configuration register block, distinct from
	// the shared application registers.
	DBI *regmap.Map
	Ops Ops
	// LinkTimeout bounds WaitForLink; DefaultLinkTimeout when zero.
	LinkTimeout time.Duration
}

const DefaultLinkTimeout = 1 * time.Second

var ErrLinkTimeout = errors.New("link not up before timeout")

// WaitForLink polls the link-up callback until it reports up or the bound
// expires. The poll backs off so a present endpoint is seen quickly while
// an empty slot does not spin.
func (p *Port) WaitForLink() (err error) {
	timeout := p.LinkTimeout
	if timeout == 0 {
		timeout = DefaultLinkTimeout
	}
	b := &backoff.Backoff{
		Min:    1 * time.Millisecond,
		Max:    100 * time.Millisecond,
		Factor: 2,
		Jitter: false,
	}
	deadline := time.Now().Add(timeout)
	for {
		if p.Ops.LinkUp() {
			log.Print(p.Name, ": link up")
			return
		}
		if time.Now().After(deadline) {
			return ErrLinkTimeout
		}
		time.Sleep(b.Duration())
	}
}

// Host drives the port through link bring-up once the SoC glue has the
// interrupt domain registered. Enumeration is the caller's business.
type Host struct {
	Port *Port
}

func (h *Host) Init() (err error) {
	if err = h.Port.Ops.StartLink(); err != nil {
		return
	}
	if h.Port.Ops.LinkUp() {
		log.Print(h.Port.Name, ": host ready")
	} else {
		// Not fatal: the link may come up later via hot-plug, or the
		// slot may be empty by design.
		log.Print(h.Port.Name, ": host ready, link still down")
	}
	return
}
