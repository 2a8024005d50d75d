package pin

// Slots is the fixed length of a PIN.
const Slots = 4

// Buffer is the keypad digit buffer. Digits fill the first empty slot left
// to right; clearing empties the rightmost filled slot. Because slots can
// never be filled out of order, the state is exactly the prefix of digits
// entered so far.
type Buffer struct {
	digits string
}

// ParseBuffer rebuilds a Buffer from its serialized form, ignoring anything
// that is not a leading run of at most four digits.
func ParseBuffer(s string) Buffer {
	var b Buffer
	for _, r := range s {
		b = b.Press(r)
	}
	return b
}

// Press fills the first empty slot with the digit. A full buffer or a
// non-digit leaves the buffer unchanged.
func (b Buffer) Press(d rune) Buffer {
	if len(b.digits) >= Slots || d < '0' || d > '9' {
		return b
	}
	return Buffer{digits: b.digits + string(d)}
}

// Clear empties the rightmost filled slot. Clearing an empty buffer is a
// no-op.
func (b Buffer) Clear() Buffer {
	if b.digits == "" {
		return b
	}
	return Buffer{digits: b.digits[:len(b.digits)-1]}
}

// Reset empties all slots.
func (b Buffer) Reset() Buffer {
	return Buffer{}
}

// Complete reports whether all four slots are filled.
func (b Buffer) Complete() bool {
	return len(b.digits) == Slots
}

// Code joins the filled slots into the submission code.
func (b Buffer) Code() string {
	return b.digits
}

// Len returns the number of filled slots.
func (b Buffer) Len() int {
	return len(b.digits)
}

// SlotValues returns the four slot contents for rendering, empty strings for
// unfilled slots.
func (b Buffer) SlotValues() [Slots]string {
	var slots [Slots]string
	for i, r := range b.digits {
		slots[i] = string(r)
	}
	return slots
}

// String serializes the buffer for session storage.
func (b Buffer) String() string {
	return b.digits
}
