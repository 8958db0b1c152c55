package validator

import "testing"

func TestValidNPID(t *testing.T) {
	cases := []struct {
		npid string
		want bool
	}{
		{"", false},
		{"ab", false},
		{"abc", true},
		{"sixteen_chars_ok", true},
		{"this_is_seventeen", false},
	}
	for _, c := range cases {
		if got := ValidNPID(c.npid); got != c.want {
			t.Errorf("ValidNPID(%q) = %v, want %v", c.npid, got, c.want)
		}
	}
}

func TestValidMessage(t *testing.T) {
	if ValidMessage("") {
		t.Error("empty message should be invalid")
	}
	if !ValidMessage("hi") {
		t.Error("short message should be valid")
	}
	long := make([]byte, 2001)
	if ValidMessage(string(long)) {
		t.Error("2001-byte message should be invalid")
	}
	exact := make([]byte, 2000)
	if !ValidMessage(string(exact)) {
		t.Error("2000-byte message should be valid")
	}
}

func TestParseTimestamp(t *testing.T) {
	if _, ok := ParseTimestamp(""); ok {
		t.Error("empty string should not parse")
	}
	if _, ok := ParseTimestamp("not-a-number"); ok {
		t.Error("non-numeric string should not parse")
	}
	ts, ok := ParseTimestamp(" 12345 ")
	if !ok || ts != 12345 {
		t.Errorf("ParseTimestamp(' 12345 ') = %d, %v, want 12345, true", ts, ok)
	}
}

func TestPNGSignatureValid(t *testing.T) {
	valid := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)
	if !PNGSignatureValid(valid) {
		t.Error("well-formed PNG signature should validate")
	}
	if PNGSignatureValid([]byte{0x89, 0x50}) {
		t.Error("too-short data should not validate")
	}
	bad := append([]byte{0x00, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)
	if PNGSignatureValid(bad) {
		t.Error("corrupted signature should not validate")
	}
}
