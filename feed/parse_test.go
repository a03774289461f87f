package feed

import "testing"

func TestParseCSVBytesValid(t *testing.T) {
	order, ok := parseCSVBytes([]byte("100.5, 1.2, 1500000000"))
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if order.Price != 100.5 || order.Amount != 1.2 || order.Timestamp != 1500000000 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestParseCSVBytesInvalid(t *testing.T) {
	cases := []string{
		"100.5,1.2",
		"100.5,1.2,1500000000,extra",
		"abc,1.2,1500000000",
		"100.5,abc,1500000000",
		"100.5,1.2,abc",
		"-1,1.2,1500000000",
	}
	for _, c := range cases {
		if _, ok := parseCSVBytes([]byte(c)); ok {
			t.Fatalf("expected parse of %q to fail", c)
		}
	}
}
