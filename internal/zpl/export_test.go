package zpl

import (
	"errors"
	"strings"
	"testing"
)

const embedSample = "~DGR:LOGO1.GRF,4,1,FF00FF00\n" +
	"^XA\n" +
	"^PW812\n" +
	"^FO100,200^XGR:LOGO1.GRF,1,1^FS\n" +
	"^FO10,10^FDHELLO^FS\n" +
	"^XZ\n" +
	"^XA^IDR:LOGO1.GRF^FS^XZ\n"

func selectImage(fields []Field, name, current string) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	for i := range out {
		if out[i].Type == Image && out[i].ImageName == name {
			out[i].CurrentValue = current
			out[i].SelectedForEmbedding = true
		}
	}
	return out
}

func TestExportEmbedsSelectedDefinitionOnce(t *testing.T) {
	doc := Load(embedSample)
	fields := selectImage(doc.Fields, "LOGO1", "NEWLOGO")
	regenerated, err := Regenerate(doc.Normalized, fields)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	out, err := Export(regenerated, fields, doc.Definitions)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := "^XA\n" +
		"^FO100,200^XGR:NEWLOGO.GRF,1,1^FS\n" +
		"~DGR:NEWLOGO.GRF,4,1,FF00FF00\n" +
		"^PW812\n" +
		"^FO10,10^FH^FDHELLO^FS\n" +
		"^XZ\n"
	if out != want {
		t.Fatalf("export:\n got %q\nwant %q", out, want)
	}

	again, _ := Export(regenerated, fields, doc.Definitions)
	if again != out {
		t.Fatalf("second export of the same text differs")
	}
	reexported, _ := Export(out, fields, doc.Definitions)
	if strings.Count(reexported, "~DG") != 1 || reexported != out {
		t.Fatalf("export of exported text changed it:\n%q", reexported)
	}
}

func TestExportWithoutSelectionDropsDefinitions(t *testing.T) {
	doc := Load(embedSample)
	out, err := Export(doc.Normalized, doc.Fields, doc.Definitions)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Contains(out, "~DG") || strings.Contains(out, "^ID") {
		t.Fatalf("definitions or housekeeping left behind: %q", out)
	}
}

func TestExportInsertsAfterOpenerWithoutPrintWidth(t *testing.T) {
	raw := "~DGR:A.GRF,2,1,FF\n^XA^FO1,1^XGR:A.GRF,1,1^FS^XZ"
	doc := Load(raw)
	fields := selectImage(doc.Fields, "A", "A")
	out, err := Export(doc.Normalized, fields, doc.Definitions)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := "^XA\n~DGR:A.GRF,2,1,FF\n^FO1,1^XGR:A.GRF,1,1^FS^XZ"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
	if again, _ := Export(out, fields, doc.Definitions); again != out {
		t.Fatalf("not idempotent: %q", again)
	}
}

func TestExportDedupesByFieldNotName(t *testing.T) {
	raw := "~DGR:A.GRF,2,1,FF\n^XA\n^FO1,1^XGR:A.GRF,1,1^FS\n^FO9,9^XGR:A.GRF,1,1^FS\n^XZ\n"
	doc := Load(raw)
	if len(doc.Fields) != 2 {
		t.Fatalf("expected 2 image fields, got %d", len(doc.Fields))
	}
	fields := make([]Field, 2)
	copy(fields, doc.Fields)
	fields[0].SelectedForEmbedding, fields[0].CurrentValue = true, "A"
	fields[1].SelectedForEmbedding, fields[1].CurrentValue = true, "B"
	out, _ := Export(doc.Normalized, append(fields, fields[0]), doc.Definitions)
	if strings.Count(out, "~DGR:A.GRF") != 1 || strings.Count(out, "~DGR:B.GRF") != 1 {
		t.Fatalf("unexpected definitions in %q", out)
	}
}

func TestExportForcesInterpretationLine(t *testing.T) {
	src := "^XA\n" +
		"^FO1,1^BY2^BCN,100,N,N,N^FD1^FS\n" +
		"^FO2,2^B3N,N,100,N,N^FD2^FS\n" +
		"^FO3,3^BC^FD3^FS\n" +
		"^FO4,4^BCN,100,Y,N,N^FD4^FS\n" +
		"^XZ\n"
	out, _ := Export(src, nil, nil)
	for _, want := range []string{"^BCN,100,Y,N,N^FH^FD1", "^B3N,N,100,Y,N^FH^FD2", "^BC,,Y^FH^FD3", "^BCN,100,Y,N,N^FH^FD4"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestExportEscapesUnderscoresWhenAddingHexMarker(t *testing.T) {
	out, _ := Export("^XA^FO1,1^FDA_B^FS^FO2,2^FH^FDC_C3_A9^FS^XZ", nil, nil)
	want := "^XA^FO1,1^FH^FDA_5FB^FS^FO2,2^FH^FDC_C3_A9^FS^XZ"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestExportReplacesEscapeIndicator(t *testing.T) {
	out, _ := Export("^XA^FO1,1^FH^FDx"+EscapeIndicator+"41^FS^XZ", nil, nil)
	if out != "^XA^FO1,1^FH^FDx_41^FS^XZ" {
		t.Fatalf("got %q", out)
	}
}

func TestExportEmptyInput(t *testing.T) {
	if _, err := Export("", nil, nil); !errors.Is(err, ErrNothingToGenerate) {
		t.Fatalf("expected ErrNothingToGenerate, got %v", err)
	}
}

func TestExportKeepsTildeInPayload(t *testing.T) {
	src := "~DGR:LOGO1.GRF,2,1,BB\n^XA\n^FO1,1^FDPromo ~DG sale^FS\n^XZ\n"
	out, err := Export(src, nil, NewDefinitionStore(src))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := "^XA\n^FO1,1^FH^FDPromo ~DG sale^FS\n^XZ\n"
	if out != want {
		t.Fatalf("export:\n got %q\nwant %q", out, want)
	}
}
