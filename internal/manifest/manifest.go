package manifest

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/timmy/mockup-studio/internal/domain"
	"github.com/timmy/mockup-studio/internal/service"
	"gopkg.in/yaml.v3"
)

// Manifest is a YAML description of a batch run.
//
//	defaults:
//	  count: 2
//	  aspect_ratio: "3:4"
//	samples:
//	  - ./samples/mug.png
//	jobs:
//	  - sku: MUG-01
//	    artwork: ./art/cat.png
//	    prompts:
//	      - prompt: white ceramic mug on a wooden desk
type Manifest struct {
	Defaults Defaults  `yaml:"defaults"`
	Samples  []string  `yaml:"samples"`
	Jobs     []JobSpec `yaml:"jobs"`

	// dir resolves relative image paths.
	dir string
}

// Defaults apply to every job that leaves the field unset.
type Defaults struct {
	Count       int    `yaml:"count"`
	AspectRatio string `yaml:"aspect_ratio"`
	Model       string `yaml:"model"`
}

// JobSpec is one job in the manifest.
type JobSpec struct {
	SKU         string          `yaml:"sku"`
	Artwork     string          `yaml:"artwork"`
	Count       int             `yaml:"count"`
	AspectRatio string          `yaml:"aspect_ratio"`
	Model       string          `yaml:"model"`
	Prompts     []domain.Prompt `yaml:"prompts"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes and validates manifest YAML. Relative paths resolve against the working directory.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every job can be enqueued once defaults are applied.
func (m *Manifest) Validate() error {
	if len(m.Jobs) == 0 {
		return fmt.Errorf("manifest has no jobs")
	}
	for i, job := range m.Jobs {
		if job.Artwork == "" {
			return fmt.Errorf("job %d: artwork is required", i+1)
		}
		if len(job.Prompts) == 0 {
			return fmt.Errorf("job %d: at least one prompt is required", i+1)
		}
		if m.countFor(job) < 1 {
			return fmt.Errorf("job %d: count must be at least 1", i+1)
		}
	}
	return nil
}

func (m *Manifest) countFor(job JobSpec) int {
	if job.Count != 0 {
		return job.Count
	}
	if m.Defaults.Count != 0 {
		return m.Defaults.Count
	}
	return 1
}

// Requests turns the jobs into enqueue requests, inlining local image files as data URLs.
func (m *Manifest) Requests() ([]service.EnqueueRequest, error) {
	reqs := make([]service.EnqueueRequest, 0, len(m.Jobs))
	for i, job := range m.Jobs {
		artwork, err := m.ResolveImage(job.Artwork)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}

		req := service.EnqueueRequest{
			Prompts:     job.Prompts,
			Count:       m.countFor(job),
			AspectRatio: job.AspectRatio,
			SKU:         job.SKU,
			ArtworkURL:  artwork,
			Model:       job.Model,
		}
		if req.AspectRatio == "" {
			req.AspectRatio = m.Defaults.AspectRatio
		}
		if req.Model == "" {
			req.Model = m.Defaults.Model
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// SampleURLs returns the manifest samples as loadable image references.
func (m *Manifest) SampleURLs() ([]string, error) {
	out := make([]string, 0, len(m.Samples))
	for i, s := range m.Samples {
		url, err := m.ResolveImage(s)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i+1, err)
		}
		out = append(out, url)
	}
	return out, nil
}

// ResolveImage keeps data: and http(s) references and reads anything else from disk.
func (m *Manifest) ResolveImage(ref string) (string, error) {
	if service.IsDataURL(ref) || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	path := ref
	if !filepath.IsAbs(path) && m.dir != "" {
		path = filepath.Join(m.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", ref, mimeType)
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}
