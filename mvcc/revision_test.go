package mvcc

import (
	"reflect"
	"testing"
)

func TestZookieRoundTrip(t *testing.T) {
	xid := TransactionId(42)
	cases := []Revision{
		{Snapshot: Snapshot{Xmin: 1, Xmax: 5, XipList: []TransactionId{2, 3}}},
		{Snapshot: Snapshot{Xmin: 5, Xmax: 5}, Xid: &xid},
		{Snapshot: Snapshot{Xmin: 0, Xmax: 0}},
	}
	for _, r := range cases {
		token := EncodeZookie(r)
		got, err := DecodeZookie(token)
		if err != nil {
			t.Fatalf("DecodeZookie(%q) failed: %v", token, err)
		}
		if !reflect.DeepEqual(got.Snapshot, r.Snapshot) {
			t.Errorf("snapshot mismatch: got %+v want %+v", got.Snapshot, r.Snapshot)
		}
		if (got.Xid == nil) != (r.Xid == nil) {
			t.Fatalf("xid presence mismatch")
		}
		if got.Xid != nil && *got.Xid != *r.Xid {
			t.Errorf("xid mismatch: got %d want %d", *got.Xid, *r.Xid)
		}
	}
}

func TestDecodeZookieGarbage(t *testing.T) {
	cases := []string{
		"not-base64!!!",
		"e30=", // valid base64 but padded, not RawURLEncoding
		"eyJzbmFwc2hvdCI6ImJhZCJ9", // {"snapshot":"bad"}
	}
	for _, s := range cases {
		if _, err := DecodeZookie(s); err != ErrInvalidToken {
			t.Errorf("DecodeZookie(%q) = %v, want ErrInvalidToken", s, err)
		}
	}
}

func TestRevisionFreshness(t *testing.T) {
	r1 := Revision{Snapshot: Snapshot{Xmin: 1, Xmax: 5}}
	r2 := Revision{Snapshot: Snapshot{Xmin: 1, Xmax: 8}}
	if Compare(r2, r1) <= 0 {
		t.Errorf("expected r2 > r1")
	}
	if !AtLeastAsFresh(r2, r1) {
		t.Errorf("expected r2 at least as fresh as r1")
	}
	if AtLeastAsFresh(r1, r2) {
		t.Errorf("expected r1 not at least as fresh as r2")
	}
}
