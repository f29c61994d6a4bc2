package chains

import "testing"

func TestRoundTrip(t *testing.T) {
	// Every supported id must survive id -> name -> id unchanged.
	ids := []int64{1, 42161, 43114, 8453, 137, 56, 250, 10, 81457}
	for _, id := range ids {
		name := Name(id)
		if got := ID(name); got != id {
			t.Errorf("round trip for %d: got %d via %q", id, got, name)
		}
	}
}

func TestUnknownChainFallsBackToEthereum(t *testing.T) {
	if got := Name(999999); got != "ethereum" {
		t.Errorf("Name(999999) = %q, want ethereum", got)
	}
	if got := ID("nonexistent-chain"); got != 1 {
		t.Errorf("ID(nonexistent-chain) = %d, want 1", got)
	}
	if Supported(999999) {
		t.Error("Supported(999999) = true")
	}
}

func TestNameIsCaseInsensitive(t *testing.T) {
	if got := ID("Polygon"); got != 137 {
		t.Errorf("ID(Polygon) = %d, want 137", got)
	}
}
