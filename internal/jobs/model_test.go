package jobs

import "testing"

func TestStatusTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusFailed:     true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestValidFileType(t *testing.T) {
	for _, ok := range []string{"text", "image", "video"} {
		if !ValidFileType(ok) {
			t.Fatalf("ValidFileType(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "audio", "Text", "document"} {
		if ValidFileType(bad) {
			t.Fatalf("ValidFileType(%q) = true", bad)
		}
	}
}
