// Copyright © 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dtb has flattened devicetree lookup helpers used to wire the
// LS1024A PCIe ports to their platform resources.
package dtb

import (
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/platinasystems/fdt"
)

// File is the default blob location.
var File = "/boot/linux.dtb"

func Load(path string) (t *fdt.Tree, err error) {
	if path == "" {
		path = File
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dtb: %w", err)
	}
	t = &fdt.Tree{Debug: false, IsLittleEndian: false}
	t.Parse(b)
	if t.RootNode == nil {
		return nil, fmt.Errorf("dtb: %s: no root node", path)
	}
	return
}

// HasCompatible reports whether compat appears in the node's compatible
// string list.
func HasCompatible(n *fdt.Node, compat string) bool {
	p, found := n.Properties["compatible"]
	if !found {
		return false
	}
	for _, s := range strings.Split(string(p), "\x00") {
		if s == compat {
			return true
		}
	}
	return false
}

// FindCompatible walks the tree under n for the first node with the given
// compatible string.
func FindCompatible(n *fdt.Node, compat string) *fdt.Node {
	if n == nil {
		return nil
	}
	if HasCompatible(n, compat) {
		return n
	}
	for _, c := range n.Children {
		if m := FindCompatible(c, compat); m != nil {
			return m
		}
	}
	return nil
}

// EachCompatible calls f for every node under n with the given compatible
// string.
func EachCompatible(n *fdt.Node, compat string, f func(*fdt.Node)) {
	if n == nil {
		return
	}
	if HasCompatible(n, compat) {
		f(n)
	}
	for _, c := range n.Children {
		EachCompatible(c, compat, f)
	}
}

func Child(n *fdt.Node, name string) *fdt.Node {
	if n == nil {
		return nil
	}
	return n.Children[name]
}

// PropU32 decodes a single cell property.
func PropU32(n *fdt.Node, name string) (v uint32, found bool) {
	p, found := n.Properties[name]
	if !found || len(p) < 4 {
		found = false
		return
	}
	v = binary.BigEndian.Uint32(p)
	return
}

// PropU32Array decodes a multi cell property.
func PropU32Array(n *fdt.Node, name string) (v []uint32, found bool) {
	p, found := n.Properties[name]
	if !found || len(p)%4 != 0 {
		found = false
		return
	}
	for i := 0; i+4 <= len(p); i += 4 {
		v = append(v, binary.BigEndian.Uint32(p[i:]))
	}
	return
}

func PropString(n *fdt.Node, name string) (s string, found bool) {
	p, found := n.Properties[name]
	if !found {
		return
	}
	s = strings.TrimRight(string(p), "\x00")
	return
}

// RegRange decodes entry i of a one-address-cell, one-size-cell reg
// property, which is what the LS1024A tree uses.
func RegRange(n *fdt.Node, i int) (base uint64, size uint64, found bool) {
	cells, found := PropU32Array(n, "reg")
	if !found || len(cells) < 2*(i+1) {
		found = false
		return
	}
	base = uint64(cells[2*i])
	size = uint64(cells[2*i+1])
	return
}

// RegByName decodes the reg entry whose reg-names entry matches name.
func RegByName(n *fdt.Node, name string) (base uint64, size uint64, found bool) {
	names, ok := PropString(n, "reg-names")
	if !ok {
		return
	}
	for i, s := range strings.Split(names, "\x00") {
		if s == name {
			return RegRange(n, i)
		}
	}
	return
}
