//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// linePin drives a single LED through the Linux GPIO character device.
type linePin struct {
	line *gpiocdev.Line
	role string
}

// OpenPins requests the three LED lines as outputs for actual Raspberry Pi
// hardware. All lines start low (LEDs dark) until explicitly driven.
func OpenPins(pinAbove, pinInBand, pinBelow int) (*Pins, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	above, err := chip.RequestLine(pinAbove, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request above pin %d: %w", pinAbove, err)
	}

	inBand, err := chip.RequestLine(pinInBand, gpiocdev.AsOutput(0))
	if err != nil {
		above.Close()
		chip.Close()
		return nil, fmt.Errorf("request in-band pin %d: %w", pinInBand, err)
	}

	below, err := chip.RequestLine(pinBelow, gpiocdev.AsOutput(0))
	if err != nil {
		inBand.Close()
		above.Close()
		chip.Close()
		return nil, fmt.Errorf("request below pin %d: %w", pinBelow, err)
	}

	return &Pins{
		Above:     &linePin{line: above, role: "above"},
		InBand:    &linePin{line: inBand, role: "in-band"},
		Below:     &linePin{line: below, role: "below"},
		closeChip: chip.Close,
	}, nil
}

// Set drives the line high (true) or low (false).
func (p *linePin) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		return fmt.Errorf("set %s pin: %w", p.role, err)
	}
	return nil
}

// Close lowers the line before releasing it so the LED goes dark rather than
// holding whatever level it last showed through shutdown/reboot.
func (p *linePin) Close() error {
	var errs []error

	if err := p.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("lower %s pin: %w", p.role, err))
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s pin: %w", p.role, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
