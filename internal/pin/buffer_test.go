package pin

import "testing"

func TestBufferFillsLeftToRight(t *testing.T) {
	var b Buffer
	for i, d := range []rune{'1', '2', '3'} {
		b = b.Press(d)
		if b.Len() != i+1 {
			t.Fatalf("expected %d filled slots, got %d", i+1, b.Len())
		}
	}

	slots := b.SlotValues()
	want := [Slots]string{"1", "2", "3", ""}
	if slots != want {
		t.Fatalf("expected slots %v, got %v", want, slots)
	}
	if b.Complete() {
		t.Fatal("buffer with 3 digits should not be complete")
	}

	b = b.Press('4')
	if !b.Complete() {
		t.Fatal("buffer with 4 digits should be complete")
	}
	if b.Code() != "1234" {
		t.Fatalf("expected code 1234, got %s", b.Code())
	}
}

func TestBufferIgnoresNonDigits(t *testing.T) {
	var b Buffer
	b = b.Press('.')
	b = b.Press('a')
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer, got %q", b.String())
	}
}

func TestBufferPressWhenFullIsNoop(t *testing.T) {
	b := ParseBuffer("1234")
	b = b.Press('5')
	if b.Code() != "1234" {
		t.Fatalf("expected code 1234, got %s", b.Code())
	}
}

func TestBufferClearRemovesRightmost(t *testing.T) {
	b := ParseBuffer("123")
	b = b.Clear()
	if b.String() != "12" {
		t.Fatalf("expected 12 after clear, got %q", b.String())
	}
}

func TestBufferClearOnEmptyIsNoop(t *testing.T) {
	var b Buffer
	if got := b.Clear(); got.Len() != 0 {
		t.Fatalf("clearing an empty buffer should be a no-op, got %q", got.String())
	}
}

func TestParseBufferDropsInvalidState(t *testing.T) {
	b := ParseBuffer("12x345")
	// The non-digit is skipped and the fifth digit does not fit.
	if b.String() != "1234" {
		t.Fatalf("expected 1234, got %q", b.String())
	}
}
