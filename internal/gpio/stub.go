//go:build !linux

package gpio

import "errors"

// OpenPins returns an error on non-Linux platforms.
func OpenPins(pinAbove, pinInBand, pinBelow int) (*Pins, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
