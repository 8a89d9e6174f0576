package hexutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"0xABCDEF": "0xabcdef",
		"ABCDEF":   "0xabcdef",
		"0xabc":    "0xabc",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecode_LengthMismatch(t *testing.T) {
	if _, err := Decode("0x1234", 4); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestDecode_AcceptsMissingPrefix(t *testing.T) {
	b, err := Decode("aabbccdd", 4)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(b) != 4 {
		t.Fatalf("got %d bytes, want 4", len(b))
	}
}

func TestEqual(t *testing.T) {
	if !Equal("0xAbCd", "abcd") {
		t.Error("expected case/prefix-insensitive equality")
	}
	if Equal("0xAbCd", "0xAbCe") {
		t.Error("expected inequality")
	}
}
