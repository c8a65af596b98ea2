// Package gpio reads an optional hardware safety interlock.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reports whether the interlock switch is engaged.
type Reader interface {
	// Engaged returns true while actuation must be held off.
	Engaged() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Disabled is a Reader for installations without an interlock.
type Disabled struct{}

// Engaged always reports false.
func (Disabled) Engaged() (bool, error) { return false, nil }

// Close does nothing.
func (Disabled) Close() error { return nil }
