// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"net/netip"
)

// ConnectionBuilder is invoked exactly once for every newly created Connection of a socket. The Connection's
// address, state and initial queue are already set, but it is not yet part of the Registry. This allows attaching
// auxiliary data through Connection.Attach.
type ConnectionBuilder interface {
	OnCreate(addr netip.AddrPort, conn *Connection)
}

// BuilderFunc adapts a function to a ConnectionBuilder.
type BuilderFunc func(addr netip.AddrPort, conn *Connection)

// OnCreate calls f.
func (f BuilderFunc) OnCreate(addr netip.AddrPort, conn *Connection) {
	f(addr, conn)
}

// Builders composes multiple ConnectionBuilders, which are invoked in their order.
type Builders []ConnectionBuilder

// OnCreate invokes each ConnectionBuilder.
func (bs Builders) OnCreate(addr netip.AddrPort, conn *Connection) {
	for _, b := range bs {
		b.OnCreate(addr, conn)
	}
}
