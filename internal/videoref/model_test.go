package videoref

import "testing"

func palInfo() *EncodingInfo {
	return &EncodingInfo{
		Width: 720, Height: 576,
		FrameRate:  FrameRate25,
		FrameCount: 250,
		Duration:   10.0,
		Codec:      "h264",
		ScanType:   ScanProgressive,
		ScanOrder:  ScanOrderNone,
		AspectRatio: Aspect16x9,
	}
}

func TestValidateEncodingInfoAccepts(t *testing.T) {
	if err := ValidateEncodingInfo(palInfo()); err != nil {
		t.Fatalf("expected valid info, got %v", err)
	}
}

func TestValidateEncodingInfoRejectsBadFrameRate(t *testing.T) {
	info := palInfo()
	info.FrameRate = NewRational(24, 1)
	if err := ValidateEncodingInfo(info); err == nil {
		t.Fatal("expected rejection for unsupported frame rate")
	}
}

func TestValidateEncodingInfoRejectsBadAspect(t *testing.T) {
	info := palInfo()
	info.AspectRatio = "21:9"
	if err := ValidateEncodingInfo(info); err == nil {
		t.Fatal("expected rejection for unsupported aspect ratio")
	}
}

func TestValidateEncodingInfoRejectsInterlacedWithoutScanOrder(t *testing.T) {
	info := palInfo()
	info.ScanType = ScanInterlaced
	info.ScanOrder = ScanOrderNone
	if err := ValidateEncodingInfo(info); err == nil {
		t.Fatal("expected rejection for interlaced without tff/bff")
	}
}

func TestValidateEncodingInfoRejectsFrameCountMismatch(t *testing.T) {
	info := palInfo()
	info.FrameCount = 100 // way off from 25fps * 10s
	if err := ValidateEncodingInfo(info); err == nil {
		t.Fatal("expected rejection for frame count inconsistent with duration")
	}
}

func TestNewEditCutValidatesOrdering(t *testing.T) {
	if _, err := NewEditCut(50, 150, "clip", 250); err != nil {
		t.Fatalf("expected valid cut, got %v", err)
	}
	if _, err := NewEditCut(150, 50, "clip", 250); err == nil {
		t.Fatal("expected rejection for mark_in >= mark_out")
	}
	if _, err := NewEditCut(0, 300, "clip", 250); err == nil {
		t.Fatal("expected rejection for mark_out > frame_count")
	}
}
