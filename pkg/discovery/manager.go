// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/schollz/peerdiscovery"
)

// Discovered is a remote socket, announced by another node.
type Discovered struct {
	Name string
	Addr netip.AddrPort
}

func (d Discovered) String() string {
	return fmt.Sprintf("Discovered(%s,%v)", d.Name, d.Addr)
}

// Manager publishes and receives Announcements.
type Manager struct {
	Name string

	discoveries chan Discovered

	stopChan4 chan struct{}
	stopChan6 chan struct{}
	closeOnce sync.Once
}

func newManager(name string, ipv4, ipv6 bool) *Manager {
	var manager = &Manager{
		Name:        name,
		discoveries: make(chan Discovered, 64),
	}
	if ipv4 {
		manager.stopChan4 = make(chan struct{})
	}
	if ipv6 {
		manager.stopChan6 = make(chan struct{})
	}
	return manager
}

// NewManager for Announcements will be created and started. Announcements from nodes of the same name are ignored.
func NewManager(
	name string, announcements []Announcement, announcementInterval time.Duration,
	ipv4, ipv6 bool) (*Manager, error) {

	var manager = newManager(name, ipv4, ipv6)

	log.WithFields(log.Fields{
		"name":          name,
		"interval":      announcementInterval,
		"IPv4":          ipv4,
		"IPv6":          ipv6,
		"announcements": announcements,
	}).Info("Starting discovery Manager")

	msg, err := MarshalAnnouncements(announcements)
	if err != nil {
		return nil, err
	}

	sets := []struct {
		active           bool
		multicastAddress string
		stopChan         chan struct{}
		ipVersion        peerdiscovery.IPVersion
	}{
		{ipv4, address4, manager.stopChan4, peerdiscovery.IPv4},
		{ipv6, address6, manager.stopChan6, peerdiscovery.IPv6},
	}

	for _, set := range sets {
		if !set.active {
			continue
		}

		set := peerdiscovery.Settings{
			Limit:            -1,
			Port:             fmt.Sprintf("%d", port),
			MulticastAddress: set.multicastAddress,
			Payload:          msg,
			Delay:            announcementInterval,
			TimeLimit:        -1,
			StopChan:         set.stopChan,
			AllowSelf:        true,
			IPVersion:        set.ipVersion,
			Notify:           manager.notify,
		}

		discoverErrChan := make(chan error)
		go func() {
			_, discoverErr := peerdiscovery.Discover(set)
			discoverErrChan <- discoverErr
		}()

		select {
		case discoverErr := <-discoverErrChan:
			if discoverErr != nil {
				return nil, discoverErr
			}

		case <-time.After(time.Second):
			break
		}
	}

	return manager, nil
}

// Channel of Discovered sockets. Discoveries are dropped if nobody reads them.
func (manager *Manager) Channel() <-chan Discovered {
	return manager.discoveries
}

func (manager *Manager) notify(discovered peerdiscovery.Discovered) {
	ip, err := netip.ParseAddr(discovered.Address)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"discovery": manager.Name,
			"peer":      discovered.Address,
		}).Warn("Peer discovery failed to parse the peer's address")

		return
	}

	announcements, err := UnmarshalAnnouncements(discovered.Payload)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"discovery": manager.Name,
			"peer":      discovered.Address,
		}).Warn("Peer discovery failed to parse incoming package")

		return
	}

	for _, announcement := range announcements {
		manager.handleDiscovery(announcement, ip.Unmap())
	}
}

func (manager *Manager) handleDiscovery(announcement Announcement, ip netip.Addr) {
	log.WithFields(log.Fields{
		"discovery": manager.Name,
		"peer":      ip,
		"message":   announcement,
	}).Debug("Peer discovery received a message")

	if announcement.Name == manager.Name {
		return
	}

	discovered := Discovered{
		Name: announcement.Name,
		Addr: netip.AddrPortFrom(ip, uint16(announcement.Port)),
	}

	select {
	case manager.discoveries <- discovered:
	default:
		log.WithFields(log.Fields{
			"discovery":  manager.Name,
			"discovered": discovered,
		}).Warn("Peer discovery dropped a discovery, nobody is listening")
	}
}

// Close this Manager. Closing the stop channels does not block, even if the discovery has already returned.
func (manager *Manager) Close() {
	manager.closeOnce.Do(func() {
		for _, c := range []chan struct{}{manager.stopChan4, manager.stopChan6} {
			if c != nil {
				close(c)
			}
		}
	})
}
