package totp

import "testing"

// RFC 6238 appendix B reference secret ("12345678901234567890" in Base32).
const refSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerate_ReferenceVectors(t *testing.T) {
	// RFC 6238 SHA-1 vectors, truncated to 6 digits.
	cases := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, c := range cases {
		got, err := Generate(refSecret, c.unix)
		if err != nil {
			t.Fatalf("Generate(t=%d): %v", c.unix, err)
		}
		if got != c.want {
			t.Fatalf("Generate(t=%d) = %q, want %q", c.unix, got, c.want)
		}
	}
}

func TestGenerate_StableWithinStep(t *testing.T) {
	a, err := Generate(refSecret, 30)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(refSecret, 59)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a != b {
		t.Fatalf("codes within one step differ: %q vs %q", a, b)
	}

	c, err := Generate(refSecret, 60)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if c == a {
		t.Fatalf("codes across adjacent steps should differ for this vector, both %q", c)
	}
}

func TestGenerate_SecretNormalization(t *testing.T) {
	want, err := Generate(refSecret, 59)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// lowercase, padded, and space-separated forms must all decode the same
	for _, s := range []string{
		"gezdgnbvgy3tqojqgezdgnbvgy3tqojq",
		refSecret + "====",
		"GEZD GNBV GY3T QOJQ GEZD GNBV GY3T QOJQ",
	} {
		got, err := Generate(s, 59)
		if err != nil {
			t.Fatalf("Generate(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("Generate(%q) = %q, want %q", s, got, want)
		}
	}
}

func TestGenerate_InvalidSecret(t *testing.T) {
	for _, s := range []string{"", "   ", "not!base32", "11111111"} {
		if _, err := Generate(s, 59); err == nil {
			t.Fatalf("Generate(%q) succeeded, want error", s)
		}
	}
}

func TestGenerate_AlwaysSixDigits(t *testing.T) {
	// t=1234567890 yields a code with a leading zero; the padding must stay.
	got, err := Generate(refSecret, 1234567890)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("code %q is not 6 digits", got)
	}
}
