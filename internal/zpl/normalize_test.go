package zpl

import (
	"strings"
	"testing"
)

func TestNormalizeGathersGroupLinesAfterMarker(t *testing.T) {
	raw := strings.Join([]string{
		"^FX header",
		"^XA",
		"^FO1,1^XGR:A.GRF,1,1^FS",
		"^FO5,5^FDX^FS",
		"^FO2,2^XGR:B.GRF,1,1^FS",
		"^FO6,6^FDY^FS",
		"^FO3,3^XGR:C.GRF,1,1^FS",
		"^XZ",
	}, "\n") + "\n"

	want := strings.Join([]string{
		"^FX header",
		"^XA",
		"^FO1,1^XGR:A.GRF,1,1^FS",
		"^FO2,2^XGR:B.GRF,1,1^FS",
		"^FO3,3^XGR:C.GRF,1,1^FS",
		"^FO5,5^FDX^FS",
		"^FO6,6^FDY^FS",
		"^XZ",
	}, "\n") + "\n"

	if got := Normalize(raw); got != want {
		t.Fatalf("normalize:\n got %q\nwant %q", got, want)
	}
}

func TestNormalizeWithoutMarkerIsIdentity(t *testing.T) {
	raw := "^FO5,5^FDX^FS\n^FO1,1^XGR:A.GRF,1,1^FS\n"
	if got := Normalize(raw); got != raw {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestNormalizeKeepsLinesBeforeMarker(t *testing.T) {
	raw := "^FO1,1^XGR:A.GRF,1,1^FS\n^XA\n^FO5,5^FDX^FS\n^XZ\n"
	if got := Normalize(raw); got != raw {
		t.Fatalf("group line before marker must stay, got %q", got)
	}
}

func TestNormalizePreservesCRLFAndMissingFinalNewline(t *testing.T) {
	raw := "^XA\r\n^FO5,5^FDX^FS\r\n^FO1,1^XGR:A.GRF,1,1^FS"
	want := "^XA\r\n^FO1,1^XGR:A.GRF,1,1^FS\r\n^FO5,5^FDX^FS"
	if got := Normalize(raw); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	once := Normalize(sample)
	if twice := Normalize(once); twice != once {
		t.Fatalf("second pass changed text:\n%q\n%q", once, twice)
	}
}
