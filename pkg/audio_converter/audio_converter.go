// Package audio_converter wraps the ffmpeg binary as an entity.Transcoder.
package audio_converter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"waveconv/entity"
)

const _defaultBinary = "ffmpeg"

// stderr fragments ffmpeg prints when the input cannot be demuxed or decoded.
var invalidInputMarkers = []string{
	"invalid data found",
	"moov atom not found",
	"matches no streams",
	"does not contain any stream",
	"could not find codec parameters",
}

var engineMissingMarkers = []string{
	"unknown encoder",
	"encoder not found",
}

// AudioConverter runs one ffmpeg process per call.
type AudioConverter struct {
	binary  string
	profile entity.VoiceProfile
	timeout time.Duration
	tmpDir  string
}

// Option -.
type Option func(*AudioConverter)

// Binary sets the ffmpeg executable. Empty means "ffmpeg" on PATH.
func Binary(path string) Option {
	return func(ac *AudioConverter) {
		if path != "" {
			ac.binary = path
		}
	}
}

// Timeout bounds a single conversion. Zero disables it.
func Timeout(d time.Duration) Option {
	return func(ac *AudioConverter) {
		ac.timeout = d
	}
}

// TempDir is where inputs are spooled before ffmpeg reads them.
func TempDir(dir string) Option {
	return func(ac *AudioConverter) {
		ac.tmpDir = dir
	}
}

func NewAudioConverter(opts ...Option) *AudioConverter {
	ac := &AudioConverter{
		binary:  _defaultBinary,
		profile: entity.TelegramVoice,
	}
	for _, opt := range opts {
		opt(ac)
	}
	return ac
}

// Probe checks that the ffmpeg binary can be started.
func (ac *AudioConverter) Probe(ctx context.Context) error {
	path, err := exec.LookPath(ac.binary)
	if err != nil {
		return &entity.TranscodeError{Kind: entity.EngineUnavailable, Reason: err.Error()}
	}
	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").CombinedOutput()
	if err != nil {
		return &entity.TranscodeError{Kind: entity.EngineUnavailable, Reason: strings.TrimSpace(string(out))}
	}
	return nil
}

// Args returns the ffmpeg arguments used for a spooled input file.
func (ac *AudioConverter) Args(inputPath string) []string {
	p := ac.profile
	return ffmpeg.Input(inputPath).
		Output("pipe:1", ffmpeg.KwArgs{
			"map":               "0:a:0",
			"c:a":               p.Codec,
			"b:a":               p.Bitrate,
			"ac":                p.Channels,
			"ar":                p.SampleRate,
			"compression_level": p.CompressionLevel,
			"frame_duration":    p.FrameDurationMs,
			"application":       p.Application,
			"f":                 p.Format,
		}).
		GlobalArgs("-hide_banner", "-loglevel", "error", "-nostdin").
		OverWriteOutput().
		GetArgs()
}

// Transcode converts in into a mono 16 kHz Opus stream in an Ogg container.
// Input is spooled to disk first because mp4/mov demuxing needs to seek.
func (ac *AudioConverter) Transcode(ctx context.Context, in io.Reader, sourceExt string, out io.Writer) error {
	if ac.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ac.timeout)
		defer cancel()
	}

	path, err := exec.LookPath(ac.binary)
	if err != nil {
		return &entity.TranscodeError{Kind: entity.EngineUnavailable, Reason: err.Error()}
	}

	inputPath, cleanup, err := ac.spool(in, sourceExt)
	if err != nil {
		return &entity.TranscodeError{Kind: entity.EncodingFailed, Reason: err.Error()}
	}
	defer cleanup()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, ac.Args(inputPath)...)
	cmd.Stdout = out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return &entity.TranscodeError{Kind: entity.EncodingFailed, Reason: ctx.Err().Error()}
		}
		return Classify(err, stderr.String())
	}

	return nil
}

func (ac *AudioConverter) spool(in io.Reader, sourceExt string) (string, func(), error) {
	f, err := os.CreateTemp(ac.tmpDir, fmt.Sprintf("waveconv-*.%s", sourceExt))
	if err != nil {
		return "", nil, errors.Wrap(err, "os.CreateTemp")
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, in); err != nil {
		f.Close()
		cleanup()
		return "", nil, errors.Wrap(err, "spool input")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, "f.Close")
	}

	return f.Name(), cleanup, nil
}

// Classify maps a failed ffmpeg run to a TranscodeError.
func Classify(runErr error, stderr string) *entity.TranscodeError {
	reason := strings.TrimSpace(stderr)
	if reason == "" && runErr != nil {
		reason = runErr.Error()
	}

	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, os.ErrNotExist) {
		return &entity.TranscodeError{Kind: entity.EngineUnavailable, Reason: reason}
	}

	lower := strings.ToLower(stderr)
	for _, m := range engineMissingMarkers {
		if strings.Contains(lower, m) {
			return &entity.TranscodeError{Kind: entity.EngineUnavailable, Reason: reason}
		}
	}
	for _, m := range invalidInputMarkers {
		if strings.Contains(lower, m) {
			return &entity.TranscodeError{Kind: entity.InvalidInputFormat, Reason: reason}
		}
	}

	return &entity.TranscodeError{Kind: entity.EncodingFailed, Reason: reason}
}
