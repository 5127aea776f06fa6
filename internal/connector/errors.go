package connector

import (
	"fmt"

	"github.com/dvloznov/bankfeed/internal/domain"
)

// ConstructionError reports a failure while building connectors from
// configuration. It aborts the whole run before any polling starts.
type ConstructionError struct {
	Provider string
	Err      error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("constructing %s connectors: %v", e.Provider, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// SetupError reports a Setup failure during init. The account remains
// in its prior state; it is never enabled on failure.
type SetupError struct {
	Ref domain.AccountRef
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setting up %s: %v", e.Ref, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
