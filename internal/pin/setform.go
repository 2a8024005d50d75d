package pin

import "errors"

// Validation messages shown on the set-PIN page. The wording matches the
// messages the product already uses.
var (
	ErrNotNumeric = errors.New("Only numbers are allowed")
	ErrIncomplete = errors.New("Please enter a 4-digit PIN")
	ErrMismatch   = errors.New("PINs do not match")
)

// SetForm holds the two independent buffers of the set-PIN page. Values are
// retained across failed submissions; only keystroke-level validation ever
// rejects input.
type SetForm struct {
	PIN     string
	Confirm string
}

// CheckDigits validates a buffer value at input time: up to four characters,
// digits only. Invalid input is rejected rather than sanitized, leaving the
// buffer unchanged.
func CheckDigits(value string) error {
	if len(value) > Slots {
		return ErrNotNumeric
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return ErrNotNumeric
		}
	}
	return nil
}

// Validate checks submit preconditions in order: both buffers complete,
// then equal. Only a nil return may be followed by the set-PIN call.
func (f SetForm) Validate() error {
	if len(f.PIN) < Slots || len(f.Confirm) < Slots {
		return ErrIncomplete
	}
	if f.PIN != f.Confirm {
		return ErrMismatch
	}
	return nil
}
