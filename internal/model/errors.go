package model

import "fmt"

// ResourceLoadError reports a model or configuration asset that could not be
// loaded. A pipeline that hits one at initialization is unusable.
type ResourceLoadError struct {
	Asset string
	Err   error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("load resource %s: %v", e.Asset, e.Err)
}

func (e *ResourceLoadError) Unwrap() error {
	return e.Err
}
