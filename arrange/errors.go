package arrange

import (
	"fmt"

	"github.com/cwbudde/algo-synth/fault"
)

var (
	// ErrAudioInUse is returned when removing a pool entry that a clip region
	// still references.
	ErrAudioInUse = fmt.Errorf("%w: audio still referenced", fault.ErrInvalidAudioReference)

	// ErrEmptyAudio is returned when deriving a clip from a zero-length entry.
	ErrEmptyAudio = fmt.Errorf("%w: audio has no frames", fault.ErrInvalidAudioReference)
)
