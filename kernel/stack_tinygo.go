//go:build tinygo

package kernel

// TinyGo has no runtime/debug stack capture.
func captureStack() []byte { return nil }
