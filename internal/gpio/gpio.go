// Package gpio drives the indicator LEDs with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Pin is a single digital output line.
type Pin interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close lowers the line and releases it.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinAbove  = 17 // orange LED: reading above the band
	DefaultPinInBand = 27 // green LED: reading inside the band
	DefaultPinBelow  = 22 // blue LED: reading below the band
)

// Pins groups the three indicator lines plus the chip handle behind them.
type Pins struct {
	Above  Pin
	InBand Pin
	Below  Pin

	// closeChip releases the chip after the lines; nil for fakes.
	closeChip func() error
}

// Close releases all three lines, then the chip.
func (p *Pins) Close() error {
	var errs []error

	for _, pin := range []Pin{p.Above, p.InBand, p.Below} {
		if pin == nil {
			continue
		}
		if err := pin.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.closeChip != nil {
		if err := p.closeChip(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
