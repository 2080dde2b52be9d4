package wire

import (
	"github.com/zsiec/vstream/media"
)

// Serialize splits payload into one or more wire datagrams carrying kind
// and pts. If len(payload) <= MaxPayload, a single datagram with
// count=1, index=0 is produced; otherwise payload is split into
// ceil(len/MaxPayload) datagrams sharing pts and count, with ascending
// indices 0..count-1.
func Serialize(kind media.Kind, pts int64, payload []byte) [][]byte {
	count := fragmentCount(len(payload))

	out := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := i * MaxPayload
		end := start + MaxPayload
		if end > len(payload) {
			end = len(payload)
		}

		h := Header{
			Kind:          kind,
			PTS:           pts,
			FragmentCount: uint16(count),
			FragmentIndex: uint16(i),
		}
		out[i] = append(h.Encode(), payload[start:end]...)
	}
	return out
}

// fragmentCount returns the number of fragments needed for a payload of
// the given length, always at least 1 (an empty payload still produces
// one zero-length fragment).
func fragmentCount(payloadLen int) int {
	if payloadLen == 0 {
		return 1
	}
	return (payloadLen + MaxPayload - 1) / MaxPayload
}

// Parse decodes a single received datagram into its header and fragment
// payload bytes. It fails with apperr.ProtocolMalformed if the datagram
// is shorter than HeaderSize.
func Parse(datagram []byte) (Header, []byte, error) {
	return DecodeHeader(datagram)
}
