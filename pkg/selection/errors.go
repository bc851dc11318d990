package selection

import (
	"errors"
	"fmt"
)

// ErrNoCandidates means the catalog responded at every relaxation
// level but produced no usable voice.
var ErrNoCandidates = errors.New("no voice candidates found at any relaxation level")

// CatalogUnavailableError means the catalog could not be reached even
// for the default (language-only) query. Transport failures at
// narrower levels are swallowed and cascade instead.
type CatalogUnavailableError struct {
	Err error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("voice catalog unavailable at default query level: %v", e.Err)
}

func (e *CatalogUnavailableError) Unwrap() error {
	return e.Err
}
