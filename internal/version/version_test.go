package version

import "testing"

func TestString(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3"
	want := "waymo-kitti 1.2.3 (" + GitSHA + ", built " + BuildTime + ")"
	if got := String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
