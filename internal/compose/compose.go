// Package compose is the seam to the image-composition provider.
//
// The provider is opaque to the rest of the system: it takes an agent
// headshot, a room photo and a listing brief, and returns rendered
// variants. The deterministic mock keeps the pipeline runnable without
// provider credentials.
package compose

import (
	"context"
	"errors"
)

// Errors
var (
	ErrNoVariants   = errors.New("compose: provider returned no variants")
	ErrDecodeImage  = errors.New("compose: cannot decode input image")
	ErrEmptyCaption = errors.New("compose: empty caption brief")
)

// VariantCount is how many composite options the provider is asked for.
const VariantCount = 3

// Prompts sent to the real provider. Kept as data so prompt tuning is a
// config change, not a code change.
const (
	SystemPrompt = "You are a professional real-estate retoucher for Ontario listings. " +
		"Make realistic, non-deceptive edits only."

	CompositeInstruction = "Composite the person from the first image into the second (interior/exterior). " +
		"Preserve identity/clothing; match perspective and lighting; add soft plausible shadow. " +
		"Do not alter permanent fixtures, windows, or views. No text/logos. Return 3 options."

	CaptionPrompt = "Write a neutral real-estate caption (180-220 chars) with 3-5 neutral hashtags for: %s.%s"
)

// Composer renders composite variants and writes listing captions.
type Composer interface {
	// Composite blends the agent headshot into the room photo and returns
	// JPEG-encoded variants.
	Composite(ctx context.Context, agent, room []byte, brief string) ([][]byte, error)

	// Caption writes a social caption for the listing brief. staged adds
	// the virtual-staging disclosure.
	Caption(ctx context.Context, brief string, staged bool) (string, error)
}
