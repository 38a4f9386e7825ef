// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package udp

import (
	"bytes"
	"net/netip"
	"reflect"
	"testing"

	"github.com/dtn7/stokes-go/pkg/transport"
)

func TestFrameCodec(t *testing.T) {
	addr := netip.MustParseAddrPort("127.0.0.1:8000")

	tests := []frame{
		newHeartbeatFrame(),
		newDataFrame(transport.NewUnreliable(addr, []byte("hello world"))),
		newDataFrame(transport.NewReliableOrdered(addr, []byte("DEADBEEF"), 7)),
		newDataFrame(transport.NewUnreliableSequenced(addr, bytes.Repeat([]byte{0x23}, 1400), 255)),
	}

	for _, fIn := range tests {
		data, err := encodeFrame(fIn)
		if err != nil {
			t.Fatalf("Encoding %v failed: %v", fIn, err)
		}
		if l := len(data) - len(fIn.payload); l > frameOverhead {
			t.Fatalf("Frame overhead of %d bytes exceeds %d", l, frameOverhead)
		}

		fOut, err := decodeFrame(data)
		if err != nil {
			t.Fatalf("Decoding %v failed: %v", fIn, err)
		}

		if len(fIn.payload) == 0 && len(fOut.payload) == 0 {
			fOut.payload = fIn.payload
		}
		if !reflect.DeepEqual(fIn, fOut) {
			t.Fatalf("Decoded frame differs: %v became %v", fIn, fOut)
		}
	}
}

func TestFrameCorrupted(t *testing.T) {
	data, err := encodeFrame(newDataFrame(transport.NewUnreliable(netip.AddrPort{}, []byte("hello"))))
	if err != nil {
		t.Fatal(err)
	}

	for i := range data {
		corrupted := append([]byte(nil), data...)
		corrupted[i] ^= 0x01

		if _, err := decodeFrame(corrupted); err == nil {
			t.Fatalf("Flipping a bit of byte %d was not detected", i)
		}
	}

	if _, err := decodeFrame(data[:2]); err == nil {
		t.Fatal("Truncated datagram was decoded")
	}
}
