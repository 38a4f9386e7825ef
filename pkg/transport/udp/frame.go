// SPDX-FileCopyrightText: 2022 The stokes-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
	"github.com/howeyc/crc16"

	"github.com/dtn7/stokes-go/pkg/transport"
)

// protocolID is the first field of every frame, "STK1" in ASCII.
const protocolID uint64 = 0x53544b31

// frameOverhead is an upper bound of the bytes a frame adds to its payload.
const frameOverhead = 32

var crc16table = crc16.MakeTable(crc16.CCITT)

// frameKind distinguishes data from heartbeat frames.
type frameKind uint64

const (
	frameData      frameKind = 0
	frameHeartbeat frameKind = 1
)

func (k frameKind) String() string {
	switch k {
	case frameData:
		return "data"
	case frameHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// frame is the content of a single datagram.
type frame struct {
	kind     frameKind
	delivery transport.Delivery
	ordering transport.Ordering
	stream   uint8
	payload  []byte
}

func newDataFrame(d transport.Datagram) frame {
	return frame{
		kind:     frameData,
		delivery: d.Delivery,
		ordering: d.Ordering,
		stream:   d.Stream,
		payload:  d.Payload,
	}
}

func newHeartbeatFrame() frame {
	return frame{kind: frameHeartbeat}
}

// MarshalCbor writes the frame's CBOR representation, without its checksum.
func (f *frame) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(6, w); err != nil {
		return err
	}

	fields := []uint64{protocolID, uint64(f.kind), uint64(f.delivery), uint64(f.ordering), uint64(f.stream)}
	for _, field := range fields {
		if err := cboring.WriteUInt(field, w); err != nil {
			return err
		}
	}

	return cboring.WriteByteString(f.payload, w)
}

// UnmarshalCbor reads a frame from its CBOR representation.
func (f *frame) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 6 {
		return fmt.Errorf("wrong array length: %d instead of 6", l)
	}

	if id, err := cboring.ReadUInt(r); err != nil {
		return err
	} else if id != protocolID {
		return fmt.Errorf("unknown protocol id %x", id)
	}

	var fields [4]uint64
	for i := range fields {
		n, err := cboring.ReadUInt(r)
		if err != nil {
			return err
		}
		fields[i] = n
	}

	switch kind := frameKind(fields[0]); kind {
	case frameData, frameHeartbeat:
		f.kind = kind
	default:
		return fmt.Errorf("unknown frame kind %d", fields[0])
	}

	if d := transport.Delivery(fields[1]); d > transport.Reliable {
		return fmt.Errorf("unknown delivery %d", fields[1])
	} else {
		f.delivery = d
	}

	if o := transport.Ordering(fields[2]); o > transport.Ordered {
		return fmt.Errorf("unknown ordering %d", fields[2])
	} else {
		f.ordering = o
	}

	if fields[3] > 0xff {
		return fmt.Errorf("stream %d exceeds one byte", fields[3])
	}
	f.stream = uint8(fields[3])

	payload, err := cboring.ReadByteString(r)
	if err != nil {
		return err
	}
	f.payload = payload

	return nil
}

// encodeFrame into the bytes of a datagram.
func encodeFrame(f frame) ([]byte, error) {
	buff := new(bytes.Buffer)
	if err := cboring.Marshal(&f, buff); err != nil {
		return nil, err
	}

	var crc [2]byte
	binary.BigEndian.PutUint16(crc[:], crc16.Checksum(buff.Bytes(), crc16table))
	buff.Write(crc[:])

	return buff.Bytes(), nil
}

// decodeFrame from a datagram's bytes, verifying its checksum.
func decodeFrame(data []byte) (f frame, err error) {
	if len(data) < 3 {
		err = fmt.Errorf("datagram of %d bytes is too short", len(data))
		return
	}

	body, crc := data[:len(data)-2], binary.BigEndian.Uint16(data[len(data)-2:])
	if calc := crc16.Checksum(body, crc16table); calc != crc {
		err = fmt.Errorf("checksum mismatch: %04x instead of %04x", crc, calc)
		return
	}

	buff := bytes.NewBuffer(body)
	if err = cboring.Unmarshal(&f, buff); err != nil {
		return
	}
	if buff.Len() != 0 {
		err = fmt.Errorf("%d trailing bytes after frame", buff.Len())
	}
	return
}
