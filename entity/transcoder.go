package entity

import (
	"context"
	"io"
)

// VoiceProfile is the target encoding of a Telegram voice message.
type VoiceProfile struct {
	Format           string
	Codec            string
	Bitrate          string
	Channels         int
	SampleRate       int
	CompressionLevel int
	FrameDurationMs  int
	Application      string
}

// TelegramVoice is the only profile the service produces.
var TelegramVoice = VoiceProfile{
	Format:           "ogg",
	Codec:            "libopus",
	Bitrate:          "64k",
	Channels:         1,
	SampleRate:       16000,
	CompressionLevel: 10,
	FrameDurationMs:  60,
	Application:      "voip",
}

// Transcoder converts a media stream into the voice profile.
//
// Implementations return a *TranscodeError on failure and must not keep any
// state between calls.
type Transcoder interface {
	Transcode(ctx context.Context, in io.Reader, sourceExt string, out io.Writer) error
}
