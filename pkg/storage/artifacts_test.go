package stores

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Read(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, 0, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

func (m *memStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = b
	m.types[key] = contentType
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func TestArtifactsSaveLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "temp_audio")
	a, err := NewArtifacts(dir, "/temp_audio/", nil, "")
	require.NoError(t, err)

	art, err := a.Save(context.Background(), "audio-1.mp3", strings.NewReader("ID3"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "audio-1.mp3"), art.Path)
	assert.Equal(t, "/temp_audio/audio-1.mp3", art.URL)
	assert.Equal(t, int64(3), art.Size)
	b, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(b))
}

func TestArtifactsPathStripsDirectories(t *testing.T) {
	a := &Artifacts{Dir: "/srv/media"}
	assert.Equal(t, filepath.Join("/srv/media", "x.mp3"), a.Path("../../etc/x.mp3"))
}

func TestArtifactsPublishToMirror(t *testing.T) {
	dir := t.TempDir()
	mirror := newMemStore()
	a, err := NewArtifacts(dir, "/temp_audio", mirror, "audio/")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "merged-1-abc.mp3"), []byte("merged"), 0o644))
	art, err := a.Publish(context.Background(), "merged-1-abc.mp3")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/audio/merged-1-abc.mp3", art.URL)
	assert.Equal(t, []byte("merged"), mirror.objects["audio/merged-1-abc.mp3"])
	assert.Equal(t, "audio/mpeg", mirror.types["audio/merged-1-abc.mp3"])
}

func TestArtifactsPublishMissing(t *testing.T) {
	a, err := NewArtifacts(t.TempDir(), "/x", nil, "")
	require.NoError(t, err)
	_, err = a.Publish(context.Background(), "nope.mp3")
	assert.Error(t, err)
}

func TestNewStoreFromEnv(t *testing.T) {
	s, err := NewStoreFromEnv("")
	require.NoError(t, err)
	assert.Nil(t, s)

	t.Setenv("MINIO_ENDPOINT", "")
	_, err = NewStoreFromEnv("minio")
	assert.Error(t, err)

	_, err = NewStoreFromEnv("ftp")
	assert.Error(t, err)
}
