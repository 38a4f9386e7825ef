// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"reflect"
	"testing"
)

func TestAnnouncementCbor(t *testing.T) {
	var tests = [][]Announcement{
		{},
		{{Name: "alpha", Port: 9000}},
		{{Name: "alpha", Port: 9000}, {Name: "alpha", Port: 9001}},
		{{Name: "", Port: 65535}},
	}

	for _, dmsIn := range tests {
		buff, err := MarshalAnnouncements(dmsIn)
		if err != nil {
			t.Fatalf("Encoding failed: %v", err)
		}

		dmsOut, err := UnmarshalAnnouncements(buff)
		if err != nil {
			t.Fatalf("Decoding failed: %v", err)
		}

		if !reflect.DeepEqual(dmsIn, dmsOut) {
			t.Fatalf("Decoded Announcements differ: %v became %v", dmsIn, dmsOut)
		}
	}
}

func TestAnnouncementInvalid(t *testing.T) {
	for _, port := range []uint{0, 70000} {
		buff, err := MarshalAnnouncements([]Announcement{{Name: "alpha", Port: port}})
		if err != nil {
			t.Fatalf("Encoding failed: %v", err)
		}

		if _, err := UnmarshalAnnouncements(buff); err == nil {
			t.Fatalf("Decoding port %d succeeded", port)
		}
	}

	if _, err := UnmarshalAnnouncements([]byte{0x80, 0x00}); err == nil {
		t.Fatal("Decoding trailing bytes succeeded")
	}
}
