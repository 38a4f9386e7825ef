// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package socket

// State of a Connection's lifecycle.
type State uint

const (
	// Pending connections have received data, but no Connect was observed yet.
	Pending State = iota

	// Connected connections observed a Connect.
	Connected

	// Disconnected is terminal. A Connection in this state was removed from its Registry.
	Disconnected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
