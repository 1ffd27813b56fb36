package transcoder

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"waveconv/entity"
)

type MockTranscoder struct {
	mock.Mock
}

var _ entity.Transcoder = (*MockTranscoder)(nil)

func NewMockTranscoder() *MockTranscoder {
	return &MockTranscoder{}
}

func (m *MockTranscoder) Transcode(ctx context.Context, in io.Reader, sourceExt string, out io.Writer) error {
	args := m.Called(ctx, in, sourceExt, out)
	return args.Error(0)
}
