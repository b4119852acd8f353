package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterbourgon/ff/v4"

	"github.com/ironsheep/omr-engine/internal/barcode"
	"github.com/ironsheep/omr-engine/internal/geometry"
	"github.com/ironsheep/omr-engine/internal/store"
	"github.com/ironsheep/omr-engine/internal/template"
)

func writePNG(t *testing.T, path string, img image.Image) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

func fillDisc(img *image.RGBA, cx, cy, r int) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
				img.Set(x, y, color.Black)
			}
		}
	}
}

func blankPage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 1300))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// surveyForm has registration marks at the corners of (100,100)-(900,1200)
// and bubble q1-a filled in. With marker set, an "OMR:TL:Survey" barcode is
// printed near the bottom.
func surveyForm(t *testing.T, marker bool) *image.RGBA {
	img := blankPage()
	for _, m := range []image.Point{{100, 100}, {900, 100}, {100, 1200}, {900, 1200}} {
		fillDisc(img, m.X, m.Y, 30)
	}
	fillDisc(img, 320, 320, 12)
	if marker {
		code, err := barcode.Encode(barcode.MarkerText("Survey"), barcode.Code128, 500, 100)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		draw.Draw(img, code.Bounds().Add(image.Pt(250, 1000)), code, code.Bounds().Min, draw.Src)
	}
	return img
}

func surveyTemplate() *template.Template {
	t := template.New()
	t.ID = "Survey"
	t.Quad = geometry.Quad{
		TopLeft:     geometry.Pt(100, 100),
		TopRight:    geometry.Pt(900, 100),
		BottomLeft:  geometry.Pt(100, 1200),
		BottomRight: geometry.Pt(900, 1200),
	}
	for i, v := range []string{"a", "b"} {
		t.Fields = append(t.Fields, &template.BubbleField{
			FieldBase: template.FieldBase{ID: "q1-" + v, Quad: geometry.RectQuad(300+float64(i)*60, 300, 40, 40)},
			Question:  "q1",
			Value:     v,
			Behavior:  template.BehaviorOne,
		})
	}
	return t
}

type workspace struct {
	dir       string
	templates string
}

// newWorkspace holds a template directory with the Survey template.
func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	templates := filepath.Join(dir, "templates")
	if err := os.MkdirAll(templates, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := surveyTemplate().SaveAs(filepath.Join(templates, "Survey"+template.DefaultExt)); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	return &workspace{dir: dir, templates: templates}
}

// args prefixes cmd with flags that keep every file inside the workspace.
func (w *workspace) args(cmd string, rest ...string) []string {
	return append([]string{
		cmd,
		"--template-dir", w.templates,
		"--snapshot-dir", filepath.Join(w.dir, "snapshots"),
		"--db", filepath.Join(w.dir, "pages.db"),
		"--log-level", "error",
		"--workers", "2",
	}, rest...)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

type scanReport struct {
	Template *template.Summary `json:"template"`
	Pages    []struct {
		TemplateID string `json:"template_id"`
		Outcome    string `json:"outcome"`
	} `json:"pages"`
}

func decodeReport(t *testing.T, data string) scanReport {
	t.Helper()
	var r scanReport
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("results are not JSON: %v\n%s", err, data)
	}
	return r
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(stdout, "omr-engine "+Version) {
		t.Errorf("unexpected version output: %q", stdout)
	}
}

func TestHelp(t *testing.T) {
	_, stderr, err := execute(t, "--help")
	if !errors.Is(err, ff.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
	for _, sub := range []string{"scan", "serve", "template", "version"} {
		if !strings.Contains(stderr, sub) {
			t.Errorf("help does not mention %s", sub)
		}
	}
}

func TestNoSubcommand(t *testing.T) {
	_, _, err := execute(t)
	if !errors.Is(err, ff.ErrHelp) {
		t.Errorf("expected ErrHelp, got %v", err)
	}
}

func TestScan_ExplicitTemplate(t *testing.T) {
	w := newWorkspace(t)
	form := writePNG(t, filepath.Join(w.dir, "form.png"), surveyForm(t, false))

	stdout, _, err := execute(t, w.args("scan",
		"--template", filepath.Join(w.templates, "Survey"+template.DefaultExt),
		"--format", "json",
		"--no-store",
		form)...)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	r := decodeReport(t, stdout)
	if len(r.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(r.Pages))
	}
	if r.Pages[0].Outcome != "Success" || r.Pages[0].TemplateID != "Survey" {
		t.Errorf("unexpected page: %+v", r.Pages[0])
	}
	if r.Template == nil || r.Template.ID != "Survey" {
		t.Errorf("expected the Survey template summary, got %+v", r.Template)
	}
	if _, err := os.Stat(filepath.Join(w.dir, "pages.db")); !os.IsNotExist(err) {
		t.Error("--no-store must not create the page database")
	}
}

func TestScan_ResolvesMarkerAndStores(t *testing.T) {
	w := newWorkspace(t)
	form := writePNG(t, filepath.Join(w.dir, "form.png"), surveyForm(t, true))
	out := filepath.Join(w.dir, "out")

	if _, _, err := execute(t, w.args("scan", "--output", out, form)...); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, resultsName+".xml"))
	if err != nil {
		t.Fatalf("results not written: %v", err)
	}
	if !strings.Contains(string(data), "Survey") {
		t.Errorf("results do not name the template:\n%s", data)
	}

	pages, err := store.OpenBolt(filepath.Join(w.dir, "pages.db"))
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	defer pages.Close()
	list, err := pages.ListPages()
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 stored page, got %d", len(list))
	}
}

func TestScan_SkipsUnreadableScans(t *testing.T) {
	w := newWorkspace(t)
	blank := writePNG(t, filepath.Join(w.dir, "blank.png"), blankPage())
	unmarked := writePNG(t, filepath.Join(w.dir, "unmarked.png"), surveyForm(t, false))
	missing := filepath.Join(w.dir, "missing.png")

	stdout, _, err := execute(t, w.args("scan", "--format", "json", "--no-store", blank, unmarked, missing)...)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	r := decodeReport(t, stdout)
	if len(r.Pages) != 0 {
		t.Errorf("expected every scan to be skipped, got %d pages", len(r.Pages))
	}
	if r.Template != nil {
		t.Errorf("an empty batch has no template, got %+v", r.Template)
	}
}

func TestScan_Errors(t *testing.T) {
	w := newWorkspace(t)

	if _, _, err := execute(t, w.args("scan")...); err == nil {
		t.Error("expected an error without files")
	}
	if _, _, err := execute(t, w.args("scan", "--format", "csv", "form.png")...); err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
	if _, _, err := execute(t, w.args("scan", "--template", filepath.Join(w.dir, "nope.mxml"), "form.png")...); err == nil {
		t.Error("expected an error for a missing template file")
	}
}

func TestTemplateCommand(t *testing.T) {
	w := newWorkspace(t)
	ref := writePNG(t, filepath.Join(w.dir, "blank-form.png"), surveyForm(t, false))

	stdout, _, err := execute(t, w.args("template", "--id", "Intake", "--marker", ref)...)
	if err != nil {
		t.Fatalf("template failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected path and marker lines, got %q", stdout)
	}
	want := filepath.Join(w.templates, "Intake"+template.DefaultExt)
	if lines[0] != want {
		t.Errorf("path: got %s, want %s", lines[0], want)
	}
	if lines[1] != barcode.MarkerText("Intake") {
		t.Errorf("marker: got %s", lines[1])
	}

	tmpl, err := template.Load(want)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tmpl.ID != "Intake" || len(tmpl.Fields) != 0 {
		t.Errorf("unexpected template: id %s, %d fields", tmpl.ID, len(tmpl.Fields))
	}
}

func TestTemplateCommand_NeedsOneScan(t *testing.T) {
	w := newWorkspace(t)
	if _, _, err := execute(t, w.args("template")...); err == nil {
		t.Error("expected an error without a reference scan")
	}
}
