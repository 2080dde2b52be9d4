package clientpipeline

import "github.com/zsiec/vstream/media"

// NewDecoder, NewVideoSink, and NewAudioSink construct the three
// external collaborators spec.md §1 scopes out of this module: a
// black-box video decoder (FFmpeg-equivalent), a display sink
// (GUI/OpenGL texture upload), and an audio output sink (PortAudio
// device I/O). cmd/vstream-client wires these to real implementations
// before starting a Pipeline; left nil, the corresponding Submit/Decode
// call is simply skipped rather than attempted against a stub.
var (
	NewDecoder   func() media.Decoder
	NewVideoSink func() media.Sink
	NewAudioSink func() media.AudioSink
)
