// Package control implements the JSON control protocol carried over the
// single reliable bidirectional QUIC stream: command/response pairs for
// listing sources, playback transport control, and ABR heartbeats.
package control

import (
	"encoding/json"
	"fmt"

	"github.com/zsiec/vstream/media"
)

// Command names the command field carried by every client request and
// most server responses.
type Command string

const (
	CmdGetList       Command = "get_list"
	CmdPlay          Command = "play"
	CmdSeek          Command = "seek"
	CmdPause         Command = "pause"
	CmdResume        Command = "resume"
	CmdHeartbeat     Command = "heartbeat"
	CmdPlayInfo      Command = "play_info"
	CmdHeartbeatReply Command = "heartbeat_reply"
)

// Trend is the wire representation of a network-trend classification,
// carried in heartbeat requests as a lowercase string.
type Trend string

const (
	TrendIncrease Trend = "increase"
	TrendDecrease Trend = "decrease"
	TrendHold     Trend = "hold"
)

// FromMedia converts a media.Trend into its wire string form.
func FromMedia(t media.Trend) Trend {
	switch t {
	case media.TrendIncrease:
		return TrendIncrease
	case media.TrendDecrease:
		return TrendDecrease
	default:
		return TrendHold
	}
}

// ToMedia converts a wire Trend into a media.Trend, defaulting to
// TrendHold for anything unrecognized.
func (t Trend) ToMedia() media.Trend {
	switch t {
	case TrendIncrease:
		return media.TrendIncrease
	case TrendDecrease:
		return media.TrendDecrease
	default:
		return media.TrendHold
	}
}

// GetListRequest requests the list of playable sources.
type GetListRequest struct {
	Command Command `json:"command"`
}

// PlayRequest starts playback of a named source ("camera" selects the
// live capture source).
type PlayRequest struct {
	Command Command `json:"command"`
	Source  string  `json:"source"`
}

// SeekRequest requests a seek to an absolute position, in seconds.
type SeekRequest struct {
	Command Command `json:"command"`
	Time    float64 `json:"time"`
}

// PauseRequest pauses playback.
type PauseRequest struct {
	Command Command `json:"command"`
}

// ResumeRequest resumes playback after a pause.
type ResumeRequest struct {
	Command Command `json:"command"`
}

// HeartbeatRequest reports the client's current network-trend estimate
// and its send timestamp, for round-trip latency measurement.
type HeartbeatRequest struct {
	Command  Command `json:"command"`
	Trend    Trend   `json:"trend"`
	ClientTS int64   `json:"client_ts"`
}

// ListResponse is the bare JSON array returned in response to get_list.
type ListResponse []string

// PlayInfoResponse reports the duration of the source just started;
// Duration == 0 means a live (unbounded) source.
type PlayInfoResponse struct {
	Command  Command `json:"command"`
	Duration float64 `json:"duration"`
}

// HeartbeatReplyResponse echoes the client's send timestamp so it can
// compute one_way = (now - client_ts) / 2.
type HeartbeatReplyResponse struct {
	Command  Command `json:"command"`
	ClientTS int64   `json:"client_ts"`
}

// decodeRequest unmarshals raw into the concrete request type named by
// its "command" field.
func decodeRequest(raw json.RawMessage) (any, error) {
	var envelope struct {
		Command Command `json:"command"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("control: decode envelope: %w", err)
	}

	switch envelope.Command {
	case CmdGetList:
		return GetListRequest{Command: envelope.Command}, nil
	case CmdPause:
		return PauseRequest{Command: envelope.Command}, nil
	case CmdResume:
		return ResumeRequest{Command: envelope.Command}, nil
	case CmdPlay:
		var m PlayRequest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("control: decode play: %w", err)
		}
		return m, nil
	case CmdSeek:
		var m SeekRequest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("control: decode seek: %w", err)
		}
		return m, nil
	case CmdHeartbeat:
		var m HeartbeatRequest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("control: decode heartbeat: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("control: unknown command %q", envelope.Command)
	}
}

// decodeResponse unmarshals raw into the concrete response type: either
// a bare JSON array (ListResponse) or an object with a "command" field.
func decodeResponse(raw json.RawMessage) (any, error) {
	trimmed := skipLeadingSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var m ListResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("control: decode list response: %w", err)
		}
		return m, nil
	}

	var envelope struct {
		Command Command `json:"command"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("control: decode envelope: %w", err)
	}

	switch envelope.Command {
	case CmdPlayInfo:
		var m PlayInfoResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("control: decode play_info: %w", err)
		}
		return m, nil
	case CmdHeartbeatReply:
		var m HeartbeatReplyResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("control: decode heartbeat_reply: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("control: unknown response command %q", envelope.Command)
	}
}

func skipLeadingSpace(b []byte) []byte {
	for i, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b[i:]
		}
	}
	return nil
}
