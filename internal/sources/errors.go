package sources

import (
	"errors"
	"fmt"

	"github.com/desertthunder/mixdeck/internal/shared"
)

// UninitializedServiceError is returned by capability accessors when the provider is not Ready.
type UninitializedServiceError struct {
	Provider   string
	Capability Capability
	State      State
}

func (e *UninitializedServiceError) Error() string {
	return fmt.Sprintf("%s: %s is not available (%s)", e.Provider, e.Capability, e.State)
}

func (e *UninitializedServiceError) Unwrap() error {
	return shared.ErrUninitializedService
}

// ErrDisabled is the degradation reason of a provider switched off in its settings.
var ErrDisabled = errors.New("source is disabled in settings")
