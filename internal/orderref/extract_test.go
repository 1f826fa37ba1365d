package orderref

import "testing"

func TestExtract(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        string
		ok          bool
	}{
		{"document prefix", "Thanh toan DOC123456789", "DOC123456789", true},
		{"lowercase prefix", "thanh toan cart20240501x", "CART20240501X", true},
		{"order marker", "Payment ORDER: ab12cd34 thanks", "AB12CD34", true},
		{"order id marker with hash", "ORDERID #XK9912", "XK9912", true},
		{"vietnamese marker", "CK MA DON 55aa01 tai VCB", "55AA01", true},
		{"joined vietnamese marker", "madon 7777Q", "7777Q", true},
		{"dh marker", "chuyen khoan DH 12345", "12345", true},
		{"marker wins over prefix", "ORDER X1Y2 ref ORD999", "X1Y2", true},
		{"prose after marker falls through", "Payment order from Nguyen ORD42", "ORD42", true},
		{"trailing punctuation stripped", "DH: ZX81-.", "ZX81", true},
		{"fallback longest run", "IBFT 123 20240501093012 Nguyen Van A", "20240501093012", true},
		{"fallback needs digit", "NGUYENVANANH chuyen tien", "", false},
		{"short runs ignored", "tra no 1234567", "", false},
		{"no token", "Thanh toan", "", false},
		{"empty", "   ", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Extract(tc.description)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("Extract(%q) = %q, %v; want %q, %v", tc.description, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	if !Matches("DOC123456789", "LH DOC123456789", "Thanh toan doc123456789", "doc123456789") {
		t.Fatal("expected case-insensitive id equality to match")
	}
	if !Matches("ORD1", "LH8F2K", "CK lh8f2k nguyen van a", "") {
		t.Fatal("expected payment content containment to match")
	}
	if Matches("ORD1", "LH8F2K", "CK khac", "ORD2") {
		t.Fatal("unrelated description must not match")
	}
	if Matches("ORD1", "", "anything", "") {
		t.Fatal("empty payment content must not match everything")
	}
}
