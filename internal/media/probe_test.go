package media

import (
	"testing"

	"github.com/gwlsn/dvdarchive/internal/videoref"
)

func TestParseRationalAcceptsColonAndSlash(t *testing.T) {
	if got := parseRational("30000/1001"); got.Cmp(videoref.FrameRate30000) != 0 {
		t.Fatalf("got %s, want 30000/1001", got)
	}
	if got := parseRational("16:9"); got.Cmp(videoref.NewRational(16, 9)) != 0 {
		t.Fatalf("got %s, want 16/9", got)
	}
}

func TestParseRationalRejectsUnknown(t *testing.T) {
	for _, s := range []string{"", "0/0", "N/A", "garbage"} {
		if got := parseRational(s); got.Den != 0 {
			t.Fatalf("parseRational(%q) = %s, want zero value", s, got)
		}
	}
}

func TestClassifyScan(t *testing.T) {
	cases := []struct {
		in         string
		wantType   videoref.ScanType
		wantOrder  videoref.ScanOrder
	}{
		{"progressive", videoref.ScanProgressive, videoref.ScanOrderNone},
		{"tt", videoref.ScanInterlaced, videoref.ScanOrderTFF},
		{"bb", videoref.ScanInterlaced, videoref.ScanOrderBFF},
	}
	for _, c := range cases {
		gotType, gotOrder := classifyScan(c.in)
		if gotType != c.wantType || gotOrder != c.wantOrder {
			t.Errorf("classifyScan(%q) = (%s, %s), want (%s, %s)", c.in, gotType, gotOrder, c.wantType, c.wantOrder)
		}
	}
}

func TestClassifyAspect(t *testing.T) {
	if classifyAspect("4:3") != videoref.Aspect4x3 {
		t.Fatal("expected 4:3")
	}
	if classifyAspect("16:9") != videoref.Aspect16x9 {
		t.Fatal("expected 16:9")
	}
	if classifyAspect("weird") != "" {
		t.Fatal("expected empty for unrecognized ratio")
	}
}
