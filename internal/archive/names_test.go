package archive

import "testing"

func TestWrapRoundTrip(t *testing.T) {
	for _, name := range []string{
		"dirA",
		"a",
		"with space",
		"[brackets] (and parens)",
		"x.tar",
		"./odd",
		"æøå",
	} {
		w := Wrap(name)
		if !IsWrapped(w) {
			t.Errorf("IsWrapped(%q) = false", w)
		}
		if got := Unwrap(w); got != name {
			t.Errorf("Unwrap(Wrap(%q)) = %q", name, got)
		}
	}
}

func TestIsWrappedPlainNames(t *testing.T) {
	for _, name := range []string{
		"dirA",
		"a.bin",
		"backup.tar",
		"./",
		"./.tar",
		".tar",
	} {
		if IsWrapped(name) {
			t.Errorf("IsWrapped(%q) = true", name)
		}
		if got := Unwrap(name); got != name {
			t.Errorf("Unwrap(%q) = %q, want it unchanged", name, got)
		}
	}
}
