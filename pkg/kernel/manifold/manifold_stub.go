//go:build !manifold

// Package manifold binds the Manifold boolean mesh library. Without the
// "manifold" build tag only this stub is compiled and New fails with
// ErrUnavailable.
package manifold

import (
	"errors"

	"github.com/chazu/facet/pkg/kernel"
)

// ErrUnavailable is returned by New when built without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// New returns ErrUnavailable.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
