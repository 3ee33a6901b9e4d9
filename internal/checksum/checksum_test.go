package checksum

import "testing"

func TestSum(t *testing.T) {
	// SHA-256 of the empty input.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestEqual(t *testing.T) {
	data := []byte("2024-03-01T09:15:02.123Z buy milk\n")
	if !Equal(data, Sum(data)) {
		t.Error("Equal should match its own sum")
	}
	if Equal(data, "") {
		t.Error("empty sum must never match")
	}
	if Equal([]byte("other"), Sum(data)) {
		t.Error("different content matched")
	}
}
