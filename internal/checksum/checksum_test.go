package checksum

import "testing"

func TestSum_KnownVector(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum(abc) = %q, want %q", got, want)
	}
}

func TestContentID_Deterministic(t *testing.T) {
	a := ContentID("## Section\nbody\n")
	b := ContentID("## Section\nbody\n")
	if a != b {
		t.Errorf("ids differ for identical content: %q vs %q", a, b)
	}
	if len(a) != ContentIDLength {
		t.Errorf("len(id) = %d, want %d", len(a), ContentIDLength)
	}
}

func TestContentID_DistinctContent(t *testing.T) {
	inputs := []string{"", "a", "b", "ab", "ba", "## A\n", "## A", "## A\n\n"}
	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		id := ContentID(in)
		if prev, ok := seen[id]; ok {
			t.Fatalf("collision between %q and %q", prev, in)
		}
		seen[id] = in
	}
}
