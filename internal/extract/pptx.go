package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Slide parts live at ppt/slides/slideN.xml inside a .pptx package.
const pptxSlidePrefix = "ppt/slides/slide"

// pptxTextRe captures the inner text of <a:t> runs, attributes and all.
var pptxTextRe = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// extractPPTX pulls the text runs out of every slide and joins them with
// single spaces.
func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("read pptx: not a zip: %w", err)
	}
	var buf strings.Builder
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("read pptx: open %s: %w", f.Name, err)
		}
		slide, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read pptx: %s: %w", f.Name, err)
		}
		for _, p := range pptxTextRe.FindAllSubmatch(slide, -1) {
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(strings.TrimSpace(string(p[1])))
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
