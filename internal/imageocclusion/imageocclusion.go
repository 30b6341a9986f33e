// Package imageocclusion implements the image-occlusion extractor (spec
// component C4): parsing the embedded TOML block describing an occluded
// image, and parsing/rewriting the SVG shapes that define its clozes.
package imageocclusion

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/antchfx/xmlquery"

	"spares/internal/cloze"
	"spares/internal/settingscodec"
)

// Data is the parsed TOML image-occlusion block embedded in a note body
// (spec section 4.4).
type Data struct {
	OriginalImageFilepath string `toml:"original_image_filepath"`
	ClozesFilepath        string `toml:"clozes_filepath"`
	FrontConceal          string `toml:"front_conceal"`
	BackReveal            string `toml:"back_reveal"`
}

// ParseTOML parses the raw TOML body of an image-occlusion block.
func ParseTOML(raw string) (Data, error) {
	var d Data
	if _, err := toml.Decode(raw, &d); err != nil {
		return Data{}, fmt.Errorf("invalid image occlusion block: %w", err)
	}
	return d, nil
}

// ClozesFilename derives the canonical clozes SVG filename from the
// original image path: "<image-stem>_clozes.svg" (grounded on
// original_source's append_to_stem/construct.rs naming rule).
func ClozesFilename(imagePath string) string {
	ext := filepath.Ext(imagePath)
	stem := strings.TrimSuffix(imagePath, ext)
	return stem + "_clozes.svg"
}

// ErrFilesMissing is returned when the original image or clozes file named
// in the TOML block do not exist on disk.
type ErrFilesMissing struct{ Paths []string }

func (e *ErrFilesMissing) Error() string {
	return fmt.Sprintf("image occlusion files missing: %s", strings.Join(e.Paths, ", "))
}

// VerifyFilesExist checks that both referenced files are present.
func VerifyFilesExist(d Data) error {
	var missing []string
	for _, p := range []string{d.OriginalImageFilepath, d.ClozesFilepath} {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &ErrFilesMissing{Paths: missing}
	}
	return nil
}

// eligibleShapeTags are the SVG element names treated as individual
// clozes; <g> wrappers are rejected (spec section 4.4).
var eligibleShapeTags = map[string]bool{
	"rect": true, "ellipse": true, "circle": true, "polygon": true, "path": true, "line": true,
}

// ErrGroupedShape is returned when a grouped <g> wrapper is found instead
// of a bare shape inside the clozes group.
type ErrGroupedShape struct{ Advice string }

func (e *ErrGroupedShape) Error() string { return "grouped shapes are not supported: " + e.Advice }

// Shape is one parsed cloze shape from the clozes SVG.
type Shape struct {
	Node           *xmlquery.Node
	Tag            string
	RawSettings    string
	GroupingSettings cloze.GroupingSettings
}

const clozeSettingsAttr = "data-cloze-settings"

// ParseClozesSVG opens svgBytes, locates <g id="clozes-group">, and returns
// its eligible shape children in document order.
func ParseClozesSVG(svgBytes []byte) ([]Shape, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(svgBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse svg: %w", err)
	}
	return shapesFromDoc(doc)
}

// parseDoc parses svgBytes and returns the root document node, retained so
// callers that mutate a shape can re-serialize the whole document.
func parseDoc(svgBytes []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(svgBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse svg: %w", err)
	}
	return doc, nil
}

func shapesFromDoc(doc *xmlquery.Node) ([]Shape, error) {
	group := xmlquery.FindOne(doc, `//*[@id="clozes-group"]`)
	if group == nil {
		return nil, fmt.Errorf(`no element with id="clozes-group" found`)
	}
	var shapes []Shape
	for child := group.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if child.Data == "g" {
			return nil, &ErrGroupedShape{Advice: "Use cloze settings to group shapes."}
		}
		if !eligibleShapeTags[child.Data] {
			continue
		}
		raw := child.SelectAttr(clozeSettingsAttr)
		shapes = append(shapes, Shape{Node: child, Tag: child.Data, RawSettings: raw})
	}
	return shapes, nil
}

// ParseShapeSettings parses the data-cloze-settings attribute of every
// shape into its GroupingSettings, defaulting image-occlusion settings to
// front_conceal=AllGroupings, back_reveal=OnlyAnswered (spec section 4.4).
func ParseShapeSettings(shapes []Shape) ([]Shape, error) {
	keys := settingscodec.ClozeSettingsKeys()
	for i := range shapes {
		base := cloze.DefaultGroupingSettings(i + 1)
		base.FrontConceal = cloze.FrontConcealAllGroupings
		base.BackReveal = cloze.BackRevealOnlyAnswered
		gs, err := cloze.ParseCardSettings(shapes[i].RawSettings, base, keys)
		if err != nil {
			return nil, err
		}
		shapes[i].GroupingSettings = gs
	}
	return shapes, nil
}

// UpdateClozeSettings sets the data-cloze-settings attribute on the
// cloze-index'th (0-based) eligible shape and returns the rewritten SVG
// document bytes. The document is rebuilt fully in memory before any file
// write (spec section 5's write-to-temp-then-rename discipline; grounded
// on original_source's "writing directly to file produces invalid svg...
// writing to a string first works fine" comment in construct.rs).
func UpdateClozeSettings(svgBytes []byte, clozeIndex int, settingsString string) ([]byte, error) {
	doc, err := parseDoc(svgBytes)
	if err != nil {
		return nil, err
	}
	shapes, err := shapesFromDoc(doc)
	if err != nil {
		return nil, err
	}
	if clozeIndex < 0 || clozeIndex >= len(shapes) {
		return nil, fmt.Errorf("failed to find cloze #%d in clozes svg", clozeIndex+1)
	}
	setOrReplaceAttr(shapes[clozeIndex].Node, clozeSettingsAttr, settingsString)

	var buf bytes.Buffer
	buf.WriteString(doc.OutputXML(true))
	return buf.Bytes(), nil
}

func setOrReplaceAttr(n *xmlquery.Node, key, value string) {
	for i := range n.Attr {
		if n.Attr[i].Name.Local == key {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xml.Attr{Name: xml.Name{Local: key}, Value: value})
}

// WriteAtomic writes data to path via write-to-temp-then-rename, avoiding
// torn files under cancellation (spec section 5).
func WriteAtomic(path string, data []byte) error {
	tmp := path + ".tmp-" + strconv.Itoa(os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
