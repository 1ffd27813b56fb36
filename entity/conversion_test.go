package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExtension(t *testing.T) {
	cases := map[string]string{
		"voice.MP3":         "mp3",
		"clip.final.WebM":   "webm",
		"noext":             "",
		"archive.tar.gz":    "gz",
		"dir/Recording.M4A": "m4a",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeExtension(in), in)
	}
}

func TestIsAllowedExtension(t *testing.T) {
	for _, ext := range []string{"mov", "mp4", "mp3", "wav", "m4a", "ogg", "webm"} {
		assert.True(t, IsAllowedExtension(ext), ext)
	}
	for _, ext := range []string{"txt", "pdf", "", "oga", "MP3"} {
		assert.False(t, IsAllowedExtension(ext), ext)
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "uploads/abc.wav", InputKey("abc", "wav"))
	assert.Equal(t, "converted/abc.oga", OutputKey("abc"))
	assert.Equal(t, "abc.oga", OutputName("abc"))
}

func TestConversionJob_Advance(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		job := NewConversionJob("id", "wav")
		assert.Equal(t, StatusReceived, job.Status)

		require.NoError(t, job.Advance(StatusTranscoding))
		require.NoError(t, job.Advance(StatusStored))
		assert.Equal(t, "converted/id.oga", job.OutputKey)
	})

	t.Run("failure from transcoding", func(t *testing.T) {
		job := NewConversionJob("id", "wav")
		require.NoError(t, job.Advance(StatusTranscoding))
		require.NoError(t, job.Advance(StatusFailed))
		assert.Empty(t, job.OutputKey)
	})

	t.Run("no way back", func(t *testing.T) {
		job := NewConversionJob("id", "wav")
		require.NoError(t, job.Advance(StatusTranscoding))
		assert.ErrorIs(t, job.Advance(StatusReceived), ErrIllegalTransition)
		assert.ErrorIs(t, job.Advance(StatusTranscoding), ErrIllegalTransition)
	})

	t.Run("terminal states", func(t *testing.T) {
		stored := NewConversionJob("a", "wav")
		require.NoError(t, stored.Advance(StatusTranscoding))
		require.NoError(t, stored.Advance(StatusStored))
		assert.ErrorIs(t, stored.Advance(StatusFailed), ErrIllegalTransition)

		failed := NewConversionJob("b", "wav")
		require.NoError(t, failed.Advance(StatusFailed))
		assert.ErrorIs(t, failed.Advance(StatusTranscoding), ErrIllegalTransition)
	})

	t.Run("cannot skip transcoding", func(t *testing.T) {
		job := NewConversionJob("id", "wav")
		assert.ErrorIs(t, job.Advance(StatusStored), ErrIllegalTransition)
	})
}

func TestParseTranscodeErrorKind(t *testing.T) {
	assert.Equal(t, InvalidInputFormat, ParseTranscodeErrorKind("invalid_input_format"))
	assert.Equal(t, EngineUnavailable, ParseTranscodeErrorKind("engine_unavailable"))
	assert.Equal(t, EncodingFailed, ParseTranscodeErrorKind("whatever"))
}
