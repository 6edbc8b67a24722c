package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// DefaultReferenceMaxDim caps the longest side of reference images sent to the provider.
const DefaultReferenceMaxDim = 1536

// ImageReferenceResolver loads artwork and sample images from data URLs or
// http(s) URLs, downscales them and re-encodes them as PNG data URLs.
type ImageReferenceResolver struct {
	client *resty.Client
	maxDim int
}

// NewImageReferenceResolver creates a resolver. maxDim <= 0 uses DefaultReferenceMaxDim.
func NewImageReferenceResolver(maxDim int) *ImageReferenceResolver {
	if maxDim <= 0 {
		maxDim = DefaultReferenceMaxDim
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	return &ImageReferenceResolver{client: client, maxDim: maxDim}
}

// Resolve normalizes the artwork and every sample concurrently. Sample order is kept.
func (r *ImageReferenceResolver) Resolve(ctx context.Context, artwork string, samples []string) (*ResolvedReferences, error) {
	out := &ResolvedReferences{Samples: make([]string, len(samples))}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := r.normalize(gctx, artwork)
		if err != nil {
			return fmt.Errorf("artwork: %w", err)
		}
		out.Artwork = img
		return nil
	})
	for i, sample := range samples {
		g.Go(func() error {
			img, err := r.normalize(gctx, sample)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i+1, err)
			}
			out.Samples[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ImageReferenceResolver) normalize(ctx context.Context, src string) (string, error) {
	data, err := r.load(ctx, src)
	if err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	img = downscale(img, r.maxDim)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return EncodeDataURL("image/png", buf.Bytes()), nil
}

func (r *ImageReferenceResolver) load(ctx context.Context, src string) ([]byte, error) {
	if src == "" {
		return nil, fmt.Errorf("empty image reference")
	}
	if IsDataURL(src) {
		_, data, err := DecodeDataURL(src)
		return data, err
	}

	resp, err := r.client.R().SetContext(ctx).Get(src)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// downscale shrinks img so its longest side is at most maxDim, keeping the aspect ratio.
func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, h*maxDim/w)
	} else {
		nh = maxDim
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
