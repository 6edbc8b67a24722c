package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(w, h)))
	return EncodeDataURL("image/png", buf.Bytes())
}

func decodedSize(t *testing.T, dataURL string) (int, int) {
	t.Helper()
	mimeType, data, err := DecodeDataURL(dataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestImageReferenceResolver_Downscales(t *testing.T) {
	r := NewImageReferenceResolver(100)

	refs, err := r.Resolve(context.Background(), pngDataURL(t, 400, 200), []string{pngDataURL(t, 50, 300), pngDataURL(t, 40, 30)})
	require.NoError(t, err)

	w, h := decodedSize(t, refs.Artwork)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)

	require.Len(t, refs.Samples, 2)
	w, h = decodedSize(t, refs.Samples[0])
	assert.Equal(t, 16, w)
	assert.Equal(t, 100, h)

	w, h = decodedSize(t, refs.Samples[1])
	assert.Equal(t, 40, w, "small images keep their size")
	assert.Equal(t, 30, h)
}

func TestImageReferenceResolver_FetchesURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/art.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_ = jpeg.Encode(w, solidImage(60, 30), nil)
	}))
	defer srv.Close()

	r := NewImageReferenceResolver(0)
	refs, err := r.Resolve(context.Background(), srv.URL+"/art.jpg", nil)
	require.NoError(t, err)
	assert.Empty(t, refs.Samples)

	w, h := decodedSize(t, refs.Artwork)
	assert.Equal(t, 60, w)
	assert.Equal(t, 30, h)

	_, err = r.Resolve(context.Background(), srv.URL+"/missing.png", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestImageReferenceResolver_Errors(t *testing.T) {
	r := NewImageReferenceResolver(100)

	_, err := r.Resolve(context.Background(), "", nil)
	assert.Error(t, err)

	_, err = r.Resolve(context.Background(), EncodeDataURL("image/png", []byte("not an image")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artwork")

	_, err = r.Resolve(context.Background(), pngDataURL(t, 10, 10), []string{"data:image/png;base64,@@"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample 1")
}
