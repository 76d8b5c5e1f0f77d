package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebi06/czimetadata-tools/czi"
	"github.com/sebi06/czimetadata-tools/internal/czitest"
	"github.com/sebi06/czimetadata-tools/planetable"
)

const cliXML = `<ImageDocument><Metadata>
<Information>
  <Instrument><Microscopes><Microscope Id="Microscope:1" Name="Axio Observer"/></Microscopes></Instrument>
  <Image><Dimensions><Channels><Channel Name="DAPI"/></Channels></Dimensions></Image>
</Information>
<DisplaySetting><Channels><Channel><ShortName>DAPI</ShortName><Color>#FF0000FF</Color></Channel></Channels></DisplaySetting>
</Metadata></ImageDocument>`

func writeCZI(t *testing.T, name string) string {
	t.Helper()
	return czitest.WriteFile(t, name, czitest.Layout{
		MetadataXML: cliXML,
		SubBlocks: []czitest.SubBlock{
			{PixelType: int32(czi.PixelTypeGray16), Width: 4, Height: 4, Metadata: czitest.Tags(5, 6, "2024-01-01T00:00:00Z")},
		},
	})
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunText(t *testing.T) {
	path := writeCZI(t, "a.czi")
	code, out, errOut := runCLI(t, path)
	if code != 0 {
		t.Fatalf("run() = %d, stderr:\n%s", code, errOut)
	}
	for _, want := range []string{
		"Microscope: Axio Observer (Microscope:1)",
		"Channels: DAPI",
		"color=#FF0000FF",
		"render=Color 0..0.5 #0000FF",
		"pixeltype=Gray16",
		"Stage position: (5, 6)",
		"Defaulted DisplaySetting.Gamma: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunJSON(t *testing.T) {
	path := writeCZI(t, "a.czi")
	code, out, errOut := runCLI(t, "--json", path)
	if code != 0 {
		t.Fatalf("run() = %d, stderr:\n%s", code, errOut)
	}
	var reports []struct {
		Source   string
		Channels struct {
			Names          []string
			RenderSettings []struct{ TintingMode string }
		}
		Blocks map[string]bool
	}
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(reports) != 1 || reports[0].Source != path {
		t.Fatalf("reports = %+v", reports)
	}
	r := reports[0]
	if len(r.Channels.Names) != 1 || r.Channels.Names[0] != "DAPI" {
		t.Errorf("Names = %v, want [DAPI]", r.Channels.Names)
	}
	if r.Channels.RenderSettings[0].TintingMode != "Color" {
		t.Errorf("TintingMode = %q, want Color", r.Channels.RenderSettings[0].TintingMode)
	}
	if !r.Blocks["DisplaySetting"] || r.Blocks["Layers"] {
		t.Errorf("Blocks = %v", r.Blocks)
	}
}

func TestRunJSONPlainXMLSources(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.xml")
	bad := filepath.Join(dir, "nonfinite.xml")
	if err := os.WriteFile(good, []byte(cliXML), 0o644); err != nil {
		t.Fatal(err)
	}
	nonFinite := strings.Replace(cliXML, "<Color>#FF0000FF</Color>",
		"<Color>#FF0000FF</Color><Low>NaN</Low><High>Inf</High>", 1)
	if err := os.WriteFile(bad, []byte(nonFinite), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runCLI(t, "--json", good, bad)
	if code != 0 {
		t.Fatalf("run() = %d, stderr:\n%s", code, errOut)
	}
	if strings.Contains(errOut, "level=ERROR") {
		t.Errorf("plain XML sources logged errors:\n%s", errOut)
	}
	var reports []struct {
		Source   string
		Channels struct {
			Limits []struct{ Low, High float64 }
		}
	}
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
	if got := reports[1].Channels.Limits[0]; got.Low != 0 || got.High != 0.5 {
		t.Errorf("%s limits = %+v, want defaults 0..0.5", reports[1].Source, got)
	}
}

func TestRunPlaneTableExport(t *testing.T) {
	a, b := writeCZI(t, "a.czi"), writeCZI(t, "b.czi")
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "planes.csv")
	if code, _, errOut := runCLI(t, "-p", csvPath, a); code != 0 {
		t.Fatalf("run(csv) = %d, stderr:\n%s", code, errOut)
	}
	fh, err := os.Open(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	tbl, err := planetable.ReadCSV(fh)
	if err != nil || len(tbl) != 1 || tbl[0].X != 5 {
		t.Errorf("exported CSV = %+v, %v", tbl, err)
	}

	dbPath := filepath.Join(dir, "planes.db")
	if code, _, errOut := runCLI(t, "-p", dbPath, a, b); code != 0 {
		t.Fatalf("run(db) = %d, stderr:\n%s", code, errOut)
	}
	store, err := planetable.OpenSQLite(dbPath, b)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if r, err := store.FirstRecord(context.Background(), 0, 0, 0); err != nil || r.Y != 6 {
		t.Errorf("stored record = %+v, %v", r, err)
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no sources", nil, 2},
		{"unknown option", []string{"--bogus", "a.czi"}, 2},
		{"missing path", []string{"-p"}, 2},
		{"csv with several sources", []string{"-p", "out.csv", "a.czi", "b.czi"}, 2},
		{"help", []string{"--help"}, 0},
		{"version", []string{"--version"}, 0},
	}
	for _, tt := range tests {
		if code, _, _ := runCLI(t, tt.args...); code != tt.code {
			t.Errorf("%s: run() = %d, want %d", tt.name, code, tt.code)
		}
	}
}

func TestRunMissingSource(t *testing.T) {
	good := writeCZI(t, "a.czi")
	code, out, errOut := runCLI(t, good, filepath.Join(t.TempDir(), "missing.czi"))
	if code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
	if !strings.Contains(errOut, "missing.czi: error:") {
		t.Errorf("stderr missing error line:\n%s", errOut)
	}
	if !strings.Contains(out, "Channels: DAPI") {
		t.Errorf("good source should still be reported:\n%s", out)
	}
}
