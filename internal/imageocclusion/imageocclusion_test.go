package imageocclusion

import (
	"path/filepath"
	"strings"
	"testing"

	"spares/internal/cloze"
)

const sampleSVG = `<svg xmlns="http://www.w3.org/2000/svg">
  <g id="clozes-group">
    <rect x="0" y="0" width="10" height="10" data-cloze-settings="o:1"/>
    <ellipse cx="5" cy="5" rx="2" ry="2"/>
  </g>
</svg>`

func TestParseTOML(t *testing.T) {
	raw := `
original_image_filepath = "map.png"
clozes_filepath = "map_clozes.svg"
front_conceal = "all-groupings"
back_reveal = "only-answered"
`
	d, err := ParseTOML(raw)
	if err != nil {
		t.Fatalf("ParseTOML: %v", err)
	}
	if d.OriginalImageFilepath != "map.png" || d.ClozesFilepath != "map_clozes.svg" {
		t.Errorf("ParseTOML = %+v", d)
	}
}

func TestParseTOMLInvalid(t *testing.T) {
	_, err := ParseTOML("not = [valid toml")
	if err == nil {
		t.Fatalf("expected an error for malformed TOML")
	}
}

func TestClozesFilename(t *testing.T) {
	got := ClozesFilename("diagrams/map.png")
	want := filepath.ToSlash("diagrams/map_clozes.svg")
	if filepath.ToSlash(got) != want {
		t.Errorf("ClozesFilename = %q, want %q", got, want)
	}
}

func TestVerifyFilesExistReportsMissing(t *testing.T) {
	err := VerifyFilesExist(Data{OriginalImageFilepath: "/no/such/image.png", ClozesFilepath: "/no/such/clozes.svg"})
	missing, ok := err.(*ErrFilesMissing)
	if !ok {
		t.Fatalf("want ErrFilesMissing, got %v", err)
	}
	if len(missing.Paths) != 2 {
		t.Errorf("Paths = %v, want 2 entries", missing.Paths)
	}
}

func TestParseClozesSVGReturnsEligibleShapesInOrder(t *testing.T) {
	shapes, err := ParseClozesSVG([]byte(sampleSVG))
	if err != nil {
		t.Fatalf("ParseClozesSVG: %v", err)
	}
	if len(shapes) != 2 {
		t.Fatalf("got %d shapes, want 2", len(shapes))
	}
	if shapes[0].Tag != "rect" || shapes[1].Tag != "ellipse" {
		t.Errorf("shape order/tags wrong: %+v", shapes)
	}
	if shapes[0].RawSettings != "o:1" {
		t.Errorf("RawSettings = %q", shapes[0].RawSettings)
	}
}

func TestParseClozesSVGRejectsGroupedShapes(t *testing.T) {
	svg := `<svg><g id="clozes-group"><g><rect/></g></g></svg>`
	_, err := ParseClozesSVG([]byte(svg))
	if _, ok := err.(*ErrGroupedShape); !ok {
		t.Fatalf("want ErrGroupedShape, got %v", err)
	}
}

func TestParseClozesSVGMissingGroup(t *testing.T) {
	_, err := ParseClozesSVG([]byte(`<svg><rect/></svg>`))
	if err == nil {
		t.Fatalf("expected an error when clozes-group is absent")
	}
}

func TestParseShapeSettingsDefaultsImageOcclusionConcealReveal(t *testing.T) {
	shapes, err := ParseClozesSVG([]byte(sampleSVG))
	if err != nil {
		t.Fatalf("ParseClozesSVG: %v", err)
	}
	shapes, err = ParseShapeSettings(shapes)
	if err != nil {
		t.Fatalf("ParseShapeSettings: %v", err)
	}
	if shapes[0].GroupingSettings.Orders[0] != 1 {
		t.Errorf("explicit o:1 setting should be honored, got %+v", shapes[0].GroupingSettings)
	}
	for i, s := range shapes {
		if s.GroupingSettings.FrontConceal != cloze.FrontConcealAllGroupings {
			t.Errorf("shape %d should default FrontConceal to all-groupings, got %v", i, s.GroupingSettings.FrontConceal)
		}
	}
}

func TestUpdateClozeSettingsRewritesAttribute(t *testing.T) {
	out, err := UpdateClozeSettings([]byte(sampleSVG), 1, "o:2")
	if err != nil {
		t.Fatalf("UpdateClozeSettings: %v", err)
	}
	if !strings.Contains(string(out), `data-cloze-settings="o:2"`) {
		t.Errorf("rewritten svg missing the updated settings attribute: %s", out)
	}
}

func TestUpdateClozeSettingsRejectsOutOfRangeIndex(t *testing.T) {
	_, err := UpdateClozeSettings([]byte(sampleSVG), 99, "o:2")
	if err == nil {
		t.Fatalf("expected an error for an out-of-range cloze index")
	}
}
