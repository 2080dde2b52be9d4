// Package wire implements the media datagram codec: the fixed 13-byte
// header, fragmentation of oversized payloads, and parsing of received
// datagrams. It has no knowledge of transport, reassembly, or jitter —
// only the wire format.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/zsiec/vstream/apperr"
	"github.com/zsiec/vstream/media"
)

// HeaderSize is the fixed wire size of DatagramHeader in bytes.
const HeaderSize = 13

// MaxPayload is the maximum fragment payload size in bytes, tunable but
// chosen to leave room under the QUIC datagram MTU.
const MaxPayload = 1200

// Header is the fixed-size, self-delimiting datagram header. All
// multi-byte fields are big-endian on the wire.
type Header struct {
	Kind           media.Kind
	PTS            int64
	FragmentCount  uint16
	FragmentIndex  uint16
}

// Encode serializes h into a new HeaderSize-byte slice.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Kind)
	binary.BigEndian.PutUint64(buf[1:9], uint64(h.PTS))
	binary.BigEndian.PutUint16(buf[9:11], h.FragmentCount)
	binary.BigEndian.PutUint16(buf[11:13], h.FragmentIndex)
	return buf
}

// DecodeHeader parses the first HeaderSize bytes of datagram as a Header,
// returning the header and the remaining fragment payload. It fails with
// an apperr.ProtocolMalformed error if datagram is shorter than HeaderSize.
func DecodeHeader(datagram []byte) (Header, []byte, error) {
	if len(datagram) < HeaderSize {
		return Header{}, nil, apperr.New(apperr.ProtocolMalformed, "wire.DecodeHeader",
			fmt.Errorf("datagram too short: %d bytes, need %d", len(datagram), HeaderSize))
	}

	h := Header{
		Kind:          media.Kind(datagram[0]),
		PTS:           int64(binary.BigEndian.Uint64(datagram[1:9])),
		FragmentCount: binary.BigEndian.Uint16(datagram[9:11]),
		FragmentIndex: binary.BigEndian.Uint16(datagram[11:13]),
	}
	return h, datagram[HeaderSize:], nil
}
