package protocol

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/encodeous/distvec/state"
	"google.golang.org/protobuf/encoding/protowire"
)

// field numbers, see distvec.proto
const (
	frameAdvertisement protowire.Number = 1
	frameData          protowire.Number = 2

	advDst         protowire.Number = 1
	advCost        protowire.Number = 2
	advUnreachable protowire.Number = 3

	dataId      protowire.Number = 1
	dataSrc     protowire.Number = 2
	dataDst     protowire.Number = 3
	dataPayload protowire.Number = 4
)

var ErrEmptyFrame = errors.New("frame carries no message")

type Advertisement struct {
	Dst    netip.Addr
	Metric state.Metric
}

// Frame is a decoded link message, exactly one field is set.
type Frame struct {
	Advertisement *Advertisement
	Data          *state.Packet
}

func appendAddr(b []byte, num protowire.Number, addr netip.Addr) []byte {
	raw, _ := addr.MarshalBinary()
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, raw)
}

func marshalAdvertisement(adv Advertisement) []byte {
	b := appendAddr(nil, advDst, adv.Dst)
	if cost, ok := adv.Metric.Cost(); ok {
		b = protowire.AppendTag(b, advCost, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(cost))
	} else {
		b = protowire.AppendTag(b, advUnreachable, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b
}

func marshalData(pkt state.Packet) []byte {
	b := protowire.AppendTag(nil, dataId, protowire.VarintType)
	b = protowire.AppendVarint(b, pkt.Id)
	b = appendAddr(b, dataSrc, pkt.Src)
	b = appendAddr(b, dataDst, pkt.Dst)
	if len(pkt.Payload) != 0 {
		b = protowire.AppendTag(b, dataPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, pkt.Payload)
	}
	return b
}

func EncodeAdvertisement(adv Advertisement) []byte {
	b := protowire.AppendTag(nil, frameAdvertisement, protowire.BytesType)
	return protowire.AppendBytes(b, marshalAdvertisement(adv))
}

func EncodeData(pkt state.Packet) []byte {
	b := protowire.AppendTag(nil, frameData, protowire.BytesType)
	return protowire.AppendBytes(b, marshalData(pkt))
}

// walk calls fn for every field in b. fn returns the number of bytes it consumed from the
// value, or -1 to have the field skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("unexpected wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("unexpected wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeAddr(typ protowire.Type, b []byte, addr *netip.Addr) (int, error) {
	raw, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	return n, addr.UnmarshalBinary(raw)
}

func unmarshalAdvertisement(b []byte) (*Advertisement, error) {
	adv := &Advertisement{}
	unreachable := false
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case advDst:
			return consumeAddr(typ, v, &adv.Dst)
		case advCost:
			cost, n, err := consumeVarint(typ, v)
			if cost > uint64(^uint32(0)) {
				return 0, fmt.Errorf("cost %d overflows", cost)
			}
			adv.Metric = state.Finite(uint32(cost))
			return n, err
		case advUnreachable:
			x, n, err := consumeVarint(typ, v)
			unreachable = protowire.DecodeBool(x)
			return n, err
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	if !adv.Dst.IsValid() {
		return nil, errors.New("advertisement without destination")
	}
	if unreachable {
		adv.Metric = state.Unreachable
	}
	return adv, nil
}

func unmarshalData(b []byte) (*state.Packet, error) {
	pkt := &state.Packet{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case dataId:
			id, n, err := consumeVarint(typ, v)
			pkt.Id = id
			return n, err
		case dataSrc:
			return consumeAddr(typ, v, &pkt.Src)
		case dataDst:
			return consumeAddr(typ, v, &pkt.Dst)
		case dataPayload:
			payload, n, err := consumeBytes(typ, v)
			pkt.Payload = append([]byte(nil), payload...)
			return n, err
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	if !pkt.Dst.IsValid() {
		return nil, errors.New("data packet without destination")
	}
	return pkt, nil
}

func Decode(b []byte) (Frame, error) {
	f := Frame{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case frameAdvertisement:
			raw, n, err := consumeBytes(typ, v)
			if err != nil {
				return 0, err
			}
			f.Advertisement, err = unmarshalAdvertisement(raw)
			return n, err
		case frameData:
			raw, n, err := consumeBytes(typ, v)
			if err != nil {
				return 0, err
			}
			f.Data, err = unmarshalData(raw)
			return n, err
		}
		return -1, nil
	})
	if err != nil {
		return Frame{}, err
	}
	if f.Advertisement == nil && f.Data == nil {
		return Frame{}, ErrEmptyFrame
	}
	return f, nil
}
