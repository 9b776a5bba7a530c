//go:build !dev

package main

// DevFlag is a no-op outside dev builds; profiling flags are compiled
// out entirely.
type DevFlag struct{}

func (d *DevFlag) Observe(_ string, f func() error) error {
	return f()
}

func (d *DevFlag) StartProfiling() error {
	return nil
}

func (d *DevFlag) StopProfiling() {}
