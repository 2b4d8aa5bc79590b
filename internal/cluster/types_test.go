package cluster

import "testing"

func TestSessionIDScopingRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []string{"sess-1", "a:b:c", "u7:tricky", ""}
	for _, identifier := range cases {
		canonical := CanonicalSessionID("42", identifier)
		if got := LocalSessionID("42", canonical); got != identifier {
			t.Fatalf("round trip of %q via %q gave %q", identifier, canonical, got)
		}
	}

	if CanonicalSessionID("42", "sess-1") == CanonicalSessionID("7", "sess-1") {
		t.Fatal("identical identifiers under different users must not collide")
	}
}
