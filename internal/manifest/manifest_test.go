package manifest

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
defaults:
  count: 2
  aspect_ratio: "3:4"
samples:
  - data:image/png;base64,c2FtcGxl
jobs:
  - sku: MUG-01
    artwork: art.png
    prompts:
      - id: desk
        prompt: white mug on a desk
      - prompt: mug in a kitchen
  - sku: TEE-02
    artwork: https://cdn.example.com/tee.png
    count: 1
    aspect_ratio: "1:1"
    model: gemini-2.5-flash-image
    prompts:
      - prompt: folded t-shirt
`

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadAndRequests(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "art.png"))
	path := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := Load(path)
	require.NoError(t, err)

	reqs, err := m.Requests()
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	first := reqs[0]
	assert.Equal(t, "MUG-01", first.SKU)
	assert.Equal(t, 2, first.Count)
	assert.Equal(t, "3:4", first.AspectRatio)
	assert.True(t, strings.HasPrefix(first.ArtworkURL, "data:image/png;base64,"))
	require.Len(t, first.Prompts, 2)
	assert.Equal(t, "desk", first.Prompts[0].ID)
	assert.Equal(t, "white mug on a desk", first.Prompts[0].Text)
	assert.Empty(t, first.Prompts[1].ID)

	second := reqs[1]
	assert.Equal(t, 1, second.Count)
	assert.Equal(t, "1:1", second.AspectRatio)
	assert.Equal(t, "https://cdn.example.com/tee.png", second.ArtworkURL)
	assert.Equal(t, "gemini-2.5-flash-image", second.Model)

	samples, err := m.SampleURLs()
	require.NoError(t, err)
	assert.Equal(t, []string{"data:image/png;base64,c2FtcGxl"}, samples)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "no jobs", yaml: "jobs: []", wantErr: "no jobs"},
		{name: "missing artwork", yaml: "jobs:\n  - prompts:\n      - prompt: x\n", wantErr: "artwork is required"},
		{name: "missing prompts", yaml: "jobs:\n  - artwork: a.png\n", wantErr: "at least one prompt"},
		{name: "negative count", yaml: "jobs:\n  - artwork: a.png\n    count: -1\n    prompts:\n      - prompt: x\n", wantErr: "count"},
		{name: "bad yaml", yaml: "jobs: [", wantErr: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveImage_NotAnImage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	m := &Manifest{dir: dir}
	_, err := m.ResolveImage("notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an image")

	_, err = m.ResolveImage("missing.png")
	assert.Error(t, err)
}
