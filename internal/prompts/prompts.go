package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Mockup Guards
// ============================================================================

// MockupGuardWithSamples is prepended when product sample images precede the artwork.
const MockupGuardWithSamples = "Use the earlier image(s) as product references. " +
	"The LAST image is the artwork to apply onto the product. " +
	"Keep the product's shape; do not repaint/reshape. " +
	"Apply realistically with natural lighting/shadows/reflections."

// MockupGuardArtworkOnly is prepended when the artwork is the only image sent.
const MockupGuardArtworkOnly = "The provided image is artwork. " +
	"Generate a product mockup as described and apply this artwork realistically " +
	"with natural lighting/shadows/reflections."

// DefaultAspectRatio is used when a job does not name one.
const DefaultAspectRatio = "1:1"

// BuildMockupPrompt assembles the text part of a mockup request.
// The result always ends with the aspect ratio clause, e.g. "... Aspect ratio: 3:4.".
func BuildMockupPrompt(userPrompt, aspectRatio string, withSamples bool) string {
	guard := MockupGuardArtworkOnly
	if withSamples {
		guard = MockupGuardWithSamples
	}
	if aspectRatio == "" {
		aspectRatio = DefaultAspectRatio
	}
	userPrompt = strings.TrimRight(strings.TrimSpace(userPrompt), ".")
	return fmt.Sprintf("%s %s. Aspect ratio: %s.", guard, userPrompt, aspectRatio)
}
