package control

import (
	"encoding/json"
	"fmt"
	"io"
)

// Stream carries compact, newline-less JSON control messages over a
// single reliable bidirectional transport stream (one message per
// json.Decoder.Decode call; no length prefixing or framing needed since
// encoding/json stops at the end of each top-level value).
type Stream struct {
	dec *json.Decoder
	w   io.Writer
}

// NewStream wraps rw (typically a quic.Stream) as a control Stream.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{
		dec: json.NewDecoder(rw),
		w:   rw,
	}
}

// ReadRequest reads and decodes one client-to-server message.
func (s *Stream) ReadRequest() (any, error) {
	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		return nil, err
	}
	return decodeRequest(raw)
}

// ReadResponse reads and decodes one server-to-client message.
func (s *Stream) ReadResponse() (any, error) {
	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		return nil, err
	}
	return decodeResponse(raw)
}

// WriteGetList sends a get_list request.
func (s *Stream) WriteGetList() error {
	return s.write(GetListRequest{Command: CmdGetList})
}

// WritePlay sends a play request for source (a file name or "camera").
func (s *Stream) WritePlay(source string) error {
	return s.write(PlayRequest{Command: CmdPlay, Source: source})
}

// WriteSeek sends a seek request to an absolute position in seconds.
func (s *Stream) WriteSeek(seconds float64) error {
	return s.write(SeekRequest{Command: CmdSeek, Time: seconds})
}

// WritePause sends a pause request.
func (s *Stream) WritePause() error {
	return s.write(PauseRequest{Command: CmdPause})
}

// WriteResume sends a resume request.
func (s *Stream) WriteResume() error {
	return s.write(ResumeRequest{Command: CmdResume})
}

// WriteHeartbeat sends a heartbeat carrying the client's current network
// trend estimate and send timestamp (milliseconds).
func (s *Stream) WriteHeartbeat(trend Trend, clientTS int64) error {
	return s.write(HeartbeatRequest{Command: CmdHeartbeat, Trend: trend, ClientTS: clientTS})
}

// WriteList sends the bare JSON array of source names in response to
// get_list.
func (s *Stream) WriteList(names []string) error {
	return s.write(ListResponse(names))
}

// WritePlayInfo sends a play_info response; durationSeconds == 0 means
// a live, unbounded source.
func (s *Stream) WritePlayInfo(durationSeconds float64) error {
	return s.write(PlayInfoResponse{Command: CmdPlayInfo, Duration: durationSeconds})
}

// WriteHeartbeatReply echoes clientTS back to the client.
func (s *Stream) WriteHeartbeatReply(clientTS int64) error {
	return s.write(HeartbeatReplyResponse{Command: CmdHeartbeatReply, ClientTS: clientTS})
}

func (s *Stream) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("control: write message: %w", err)
	}
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("control: write message: %w", err)
	}
	return nil
}
