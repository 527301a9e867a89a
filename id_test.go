package notifybox

import "testing"

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	first, err := gen.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	second, err := gen.New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if first.Version() != 7 {
		t.Fatalf("expected version 7, got %d", first.Version())
	}
	if first == second {
		t.Fatalf("expected unique ids")
	}
	if first.String() >= second.String() {
		t.Fatalf("expected time-ordered ids, got %s then %s", first, second)
	}

	parsed, err := ParseID(first.String())
	if err != nil || parsed != first {
		t.Fatalf("parse round trip failed: %v", err)
	}
	if _, err := ParseID("not-a-uuid"); err == nil {
		t.Fatalf("expected parse error")
	}
}
