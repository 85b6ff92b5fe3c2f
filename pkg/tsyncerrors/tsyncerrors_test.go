package tsyncerrors

import (
	"errors"
	"testing"
)

func TestNewNilCausePassthrough(t *testing.T) {
	if err := New(KindIO, nil); err != nil {
		t.Error("New with nil cause should return nil, got:", err)
	}
}

func TestExitCodes(t *testing.T) {
	cases := []struct {
		kind Kind
		code int
	}{
		{KindUsage, 1},
		{KindIO, 2},
		{KindFormat, 3},
		{KindVerify, 3},
	}
	for _, c := range cases {
		err := New(c.kind, errors.New("boom"))
		if got := ExitCode(err); got != c.code {
			t.Errorf("kind %v: exit code %d != %d", c.kind, got, c.code)
		}
	}
}

func TestExitCodeNilError(t *testing.T) {
	if code := ExitCode(nil); code != 0 {
		t.Error("nil error should map to exit code 0, got:", code)
	}
}

func TestKindOfUnclassifiedDefaultsToIO(t *testing.T) {
	if kind := KindOf(errors.New("plain")); kind != KindIO {
		t.Error("unclassified error should default to KindIO, got:", kind)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := New(KindVerify, cause)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should see through to the wrapped cause")
	}
}
