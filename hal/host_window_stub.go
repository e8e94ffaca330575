//go:build !cgo

package hal

import (
	"context"
	"errors"

	"sparksched/kernel"
)

func RunWindow(_ context.Context, _ *Host, _ func() *kernel.Snapshot) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
