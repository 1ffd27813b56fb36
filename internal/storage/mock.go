package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"waveconv/entity"
)

type MockArtifactStore struct {
	mock.Mock
}

var _ entity.ArtifactStore = (*MockArtifactStore)(nil)

func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{}
}

func (m *MockArtifactStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (entity.StoredRef, error) {
	args := m.Called(ctx, key, r, contentType)
	return args.Get(0).(entity.StoredRef), args.Error(1)
}

func (m *MockArtifactStore) Get(ctx context.Context, key string) (*entity.Artifact, error) {
	args := m.Called(ctx, key)
	a, _ := args.Get(0).(*entity.Artifact)
	return a, args.Error(1)
}

func (m *MockArtifactStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockArtifactStore) List(ctx context.Context, prefix string) ([]entity.ArtifactInfo, error) {
	args := m.Called(ctx, prefix)
	items, _ := args.Get(0).([]entity.ArtifactInfo)
	return items, args.Error(1)
}

func (m *MockArtifactStore) PublicURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
