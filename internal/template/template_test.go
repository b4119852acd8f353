package template

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	omrerrors "github.com/ironsheep/omr-engine/internal/errors"
	"github.com/ironsheep/omr-engine/internal/geometry"
)

// sampleTemplate builds a small form with one of every field kind.
func sampleTemplate() *Template {
	t := New()
	t.ID = "Survey"
	t.Quad = geometry.Quad{
		TopLeft:     geometry.Pt(50, 50),
		TopRight:    geometry.Pt(800, 50),
		BottomLeft:  geometry.Pt(50, 1050),
		BottomRight: geometry.Pt(800, 1050),
	}
	t.SourcePath = "survey.jpg"
	t.Script = &Script{Language: "js", Source: "return page;"}
	t.Fields = []Field{
		&BarcodeField{FieldBase{ID: "patient", Quad: geometry.RectQuad(100, 100, 300, 60)}},
		&BubbleField{
			FieldBase: FieldBase{ID: "q1a", Quad: geometry.RectQuad(100, 200, 20, 20)},
			Question:  "q1",
			Value:     "a",
			Behavior:  BehaviorOne,
		},
		&BubbleField{
			FieldBase: FieldBase{ID: "q2a", Quad: geometry.RectQuad(100, 250, 20, 20), AnswerRowGroup: "row1"},
			Question:  "q2",
			Value:     "a",
			Behavior:  BehaviorCount,
		},
		NewTrueFalseField("q3", "q3", geometry.RectQuad(100, 300, 60, 20), Horizontal, ""),
	}
	return t
}

func TestTemplateRoundTrip(t *testing.T) {
	original := sampleTemplate()

	var buf bytes.Buffer
	if err := original.Encode(&buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), Namespace) {
		t.Errorf("encoded document missing namespace %q", Namespace)
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.ID != "Survey" || decoded.Version != MaxVersion {
		t.Errorf("identity = %s/%s, want Survey/%s", decoded.ID, decoded.Version, MaxVersion)
	}
	if decoded.Quad != original.Quad {
		t.Errorf("corners = %+v, want %+v", decoded.Quad, original.Quad)
	}
	if decoded.SourcePath != "survey.jpg" {
		t.Errorf("SourcePath = %q", decoded.SourcePath)
	}
	if decoded.Script == nil || decoded.Script.Source != "return page;" {
		t.Errorf("Script = %+v", decoded.Script)
	}
	if len(decoded.Fields) != 4 {
		t.Fatalf("got %d fields, want 4", len(decoded.Fields))
	}

	if _, ok := decoded.Fields[0].(*BarcodeField); !ok {
		t.Errorf("field 0 is %T, want *BarcodeField", decoded.Fields[0])
	}
	count, ok := decoded.Fields[2].(*BubbleField)
	if !ok {
		t.Fatalf("field 2 is %T, want *BubbleField", decoded.Fields[2])
	}
	if count.Behavior != BehaviorCount || count.RowGroup() != "row1" {
		t.Errorf("count bubble = %+v", count)
	}
	tf, ok := decoded.Fields[3].(*TrueFalseField)
	if !ok {
		t.Fatalf("field 3 is %T, want *TrueFalseField", decoded.Fields[3])
	}
	if len(tf.Children) != 2 || tf.Children[0].Value != "true" || tf.Children[1].Value != "false" {
		t.Errorf("true/false children = %+v", tf.Children)
	}
	if tf.Children[0].Bounds() != original.Fields[3].(*TrueFalseField).Children[0].Bounds() {
		t.Errorf("child bounds changed in round trip")
	}
}

func TestDecodeDefaults(t *testing.T) {
	doc := `<template xmlns="urn:scan-omr:template" id="Bare" version="0.5"
		topLeft="0,0" topRight="10,0" bottomLeft="0,10" bottomRight="10,10">
		<questionBubble id="b1" key="q" value="x" topLeft="1,1" topRight="3,1" bottomLeft="1,3" bottomRight="3,3"/>
		<unknownThing><nested/></unknownThing>
	</template>`

	tmpl, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tmpl.ScanThreshold != DefaultScanThreshold {
		t.Errorf("ScanThreshold = %d, want %d", tmpl.ScanThreshold, DefaultScanThreshold)
	}
	if len(tmpl.Fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(tmpl.Fields))
	}
	b := tmpl.Fields[0].(*BubbleField)
	if b.Behavior != BehaviorOne {
		t.Errorf("Behavior = %q, want One", b.Behavior)
	}
	if b.Bounds().Width() != 2 {
		t.Errorf("Width = %v, want 2", b.Bounds().Width())
	}
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	doc := `<template xmlns="urn:scan-omr:template" id="Future" version="0.9.0.0"
		topLeft="0,0" topRight="10,0" bottomLeft="0,10" bottomRight="10,10"/>`

	tmpl, err := Decode(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected version error")
	}
	if tmpl != nil {
		t.Error("expected no template on version error")
	}
	if !omrerrors.HasCode(err, omrerrors.ErrorTemplateVersion) {
		t.Errorf("error %v does not carry TEMPLATE_VERSION", err)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"wrong root", `<page id="x" version="0.1"/>`},
		{"bad point", `<template id="x" version="0.1" topLeft="abc"/>`},
		{"bad behavior", `<template id="x" version="0.1"><questionBubble id="b" behavior="Some"/></template>`},
		{"truncated", `<template id="x" version="0.1"><questionBubble`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveAndResolve(t *testing.T) {
	dir := t.TempDir()
	tmpl := sampleTemplate()

	r := Resolver{Dir: dir}
	if err := tmpl.SaveAs(r.Path("Survey")); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	if tmpl.FileName != filepath.Join(dir, "Survey.mxml") {
		t.Errorf("FileName = %q", tmpl.FileName)
	}

	loaded, err := r.Resolve("Survey")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if loaded.FileName != tmpl.FileName {
		t.Errorf("loaded FileName = %q", loaded.FileName)
	}

	loaded.ScanThreshold = 99
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	again, err := Load(loaded.FileName)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if again.ScanThreshold != 99 {
		t.Errorf("ScanThreshold = %d after save, want 99", again.ScanThreshold)
	}
}

func TestResolverRejectsTraversal(t *testing.T) {
	r := Resolver{Dir: t.TempDir()}
	for _, name := range []string{"", "../etc", "a/b"} {
		if _, err := r.Resolve(name); err == nil {
			t.Errorf("Resolve(%q) succeeded", name)
		}
	}
}

func TestSaveWithoutFileName(t *testing.T) {
	if err := New().Save(); err == nil {
		t.Error("expected error saving template without file name")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.mxml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestFlatFieldsAndSummary(t *testing.T) {
	tmpl := sampleTemplate()

	flat := tmpl.FlatFields()
	if len(flat) != 5 {
		t.Fatalf("got %d flat fields, want 5", len(flat))
	}
	if flat[3].FieldID() != "q3-t" || flat[4].FieldID() != "q3-f" {
		t.Errorf("container children not flattened in order: %s, %s", flat[3].FieldID(), flat[4].FieldID())
	}

	if _, ok := tmpl.Field("q3-f"); !ok {
		t.Error("Field(q3-f) not found")
	}
	if _, ok := tmpl.Field("nope"); ok {
		t.Error("Field(nope) found")
	}

	s := tmpl.Summarize()
	if s.BarcodeFields != 1 || s.BubbleFields != 4 || s.Questions != 3 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.RowGroups) != 1 || s.RowGroups[0] != "row1" {
		t.Errorf("RowGroups = %v", s.RowGroups)
	}
}

func TestNewTrueFalseFieldVertical(t *testing.T) {
	tf := NewTrueFalseField("tf", "q", geometry.RectQuad(0, 0, 20, 40), Vertical, "r")

	top, bottom := tf.Children[0].Bounds(), tf.Children[1].Bounds()
	if top.Height() != 20 || bottom.TopLeft.Y != 20 {
		t.Errorf("vertical split = %+v / %+v", top, bottom)
	}
	if tf.Children[1].RowGroup() != "r" {
		t.Error("children should inherit row group")
	}
}
