package schema

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in    string
		scale Scale
		want  Price
	}{
		{"125.50", 2, 12550},
		{"125.5", 2, 12550},
		{"125", 2, 12500},
		{"0.05", 2, 5},
		{"-3.25", 2, -325},
		{"+1.00", 2, 100},
		{"125.509", 2, 12550}, // excess precision truncates toward zero
		{"125.50", 0, 125},
		{".5", 1, 5},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in, tc.scale)
		if err != nil {
			t.Fatalf("ParsePrice(%q, %d): %v", tc.in, tc.scale, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePrice(%q, %d) = %d, want %d", tc.in, tc.scale, got, tc.want)
		}
	}
}

func TestParsePriceRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "1.2.3", "12a"} {
		if _, err := ParsePrice(in, 2); err == nil {
			t.Fatalf("ParsePrice(%q) accepted garbage", in)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	got, err := ParseQuantity("50", 0)
	if err != nil {
		t.Fatalf("ParseQuantity: %v", err)
	}
	if got != 50 {
		t.Fatalf("got %d, want 50", got)
	}
}

func TestPriceAppendStringRoundTrip(t *testing.T) {
	cases := []struct {
		price Price
		scale Scale
		want  string
	}{
		{12550, 2, "125.50"},
		{5, 2, "0.05"},
		{-325, 2, "-3.25"},
		{125, 0, "125"},
	}
	for _, tc := range cases {
		got := string(tc.price.AppendString(tc.scale, nil))
		if got != tc.want {
			t.Fatalf("Price(%d).AppendString(%d) = %q, want %q", tc.price, tc.scale, got, tc.want)
		}
		back, err := ParsePrice(got, tc.scale)
		if err != nil || back != tc.price {
			t.Fatalf("round trip %q: got %d (%v), want %d", got, back, err, tc.price)
		}
	}
}
