// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Command ls1024a-pcied publishes LS1024A PCIe port status to the platform
// redis hash and services relink requests.
package main

import (
	"errors"
	"fmt"
	"net/rpc"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/atsock"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"
	"github.com/platinasystems/redis/rpc/args"
	"github.com/platinasystems/redis/rpc/reply"

	"github.com/platinasystems/ls1024a/dtb"
	"github.com/platinasystems/ls1024a/pcie"
	"github.com/platinasystems/ls1024a/phy"
)

var pollInterval = 5 * time.Second

// counterSlots are the mux slots worth publishing.
var counterSlots = []uint{
	pcie.SlotIntA, pcie.SlotIntB, pcie.SlotIntC, pcie.SlotIntD, pcie.SlotMsi,
}

type Info struct {
	mutex  sync.Mutex
	rpc    *atsock.RpcServer
	pub    *publisher.Publisher
	stop   chan struct{}
	lasts  map[string]string
	ports  []*pcie.Controller
	relink map[string]bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ls1024a-pcied: ", err)
		os.Exit(1)
	}
}

func run(cmdline []string) (err error) {
	parm, _ := parms.New(cmdline, "-dtb", "-interval")
	if s := parm.ByName["-interval"]; s != "" {
		if pollInterval, err = time.ParseDuration(s); err != nil {
			return fmt.Errorf("-interval %s: %w", s, err)
		}
	}

	if err = redis.IsReady(); err != nil {
		return
	}

	t, err := dtb.Load(parm.ByName["-dtb"])
	if err != nil {
		return
	}
	cfgs, err := pcie.Discover(t.RootNode)
	if err != nil {
		return
	}

	i := &Info{
		stop:   make(chan struct{}),
		lasts:  make(map[string]string),
		relink: make(map[string]bool),
		ports:  probePorts(cfgs),
	}
	if len(i.ports) == 0 {
		return errors.New("no pcie port came up")
	}

	if i.pub, err = publisher.New(); err != nil {
		return
	}
	if i.rpc, err = atsock.NewRpcServer("ls1024a-pcied"); err != nil {
		return
	}
	rpc.Register(i)
	for _, c := range i.ports {
		err = redis.Assign(redis.DefaultHash+":"+c.Name()+".",
			"ls1024a-pcied", "Info")
		if err != nil {
			return
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(i.stop)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-i.stop:
			for _, c := range i.ports {
				c.Close()
			}
			return nil
		case <-ticker.C:
			i.update()
		}
	}
}

// probePorts brings up every discovered port, waiting out a phy that is
// still initializing. A port that fails for any other reason is skipped; the
// remaining ports still get served.
func probePorts(cfgs []*pcie.Config) (ports []*pcie.Controller) {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: false,
	}
	for _, cfg := range cfgs {
		b.Reset()
		for {
			c, err := pcie.Probe(cfg)
			if err == nil {
				ports = append(ports, c)
				break
			}
			if !errors.Is(err, phy.ErrNotReady) {
				log.Print("pcie", cfg.Index, ": ", err)
				break
			}
			d := b.Duration()
			if d >= b.Max {
				log.Print("pcie", cfg.Index, ": phy never came up")
				break
			}
			time.Sleep(d)
		}
	}
	return
}

func (i *Info) update() {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	for _, c := range i.ports {
		if i.relink[c.Name()] {
			i.relink[c.Name()] = false
			if err := c.StartLink(); err != nil {
				log.Print(c.Name(), ": relink: ", err)
			}
		}

		state := "down"
		if c.LinkUp() {
			state = "up"
		}
		i.publish(c.Name()+".link", state)

		if sts0, err := c.Sts0(); err == nil {
			i.publish(c.Name()+".sts0", fmt.Sprintf("0x%08x", sts0))
		}

		for _, slot := range counterSlots {
			k := fmt.Sprintf("%s.intr.%s.count",
				c.Name(), pcie.SlotName(slot))
			i.publish(k, fmt.Sprintf("%d", c.IntrCount(slot)))
		}
	}
}

func (i *Info) publish(k, v string) {
	if v != i.lasts[k] {
		i.pub.Print(k, ": ", v)
		i.lasts[k] = v
	}
}

// Hset services "pcie<N>.relink: true"; the link restart itself runs from
// the poll loop, not the rpc goroutine.
func (i *Info) Hset(a args.Hset, r *reply.Hset) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	field := strings.TrimSuffix(a.Field, ".relink")
	if field == a.Field {
		return fmt.Errorf("%s: unknown field", a.Field)
	}
	for _, c := range i.ports {
		if c.Name() != field {
			continue
		}
		v := strings.TrimRight(string(a.Value), "\n")
		if v != "true" {
			return fmt.Errorf("%s: want true, not %q", a.Field, v)
		}
		i.relink[c.Name()] = true
		*r = 1
		return nil
	}
	return fmt.Errorf("%s: no such port", a.Field)
}
