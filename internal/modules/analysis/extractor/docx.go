package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DocxText returns the paragraphs of an OOXML word document, one per line.
// Legacy binary .doc content is not a zip archive and fails here.
func DocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not an OOXML document: %w", err)
	}
	body, err := readZipFile(zr.File, "word/document.xml")
	if err != nil {
		return "", err
	}
	paras, err := docxParagraphs(body)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, p := range paras {
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func readZipFile(files []*zip.File, target string) ([]byte, error) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f.Name), target) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("file not found in archive: %s", target)
}

func docxParagraphs(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		inParagraph bool
		inText      bool
		text        strings.Builder
		out         []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				inText = false
				text.Reset()
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					text.WriteString("\t")
				}
			case "br", "cr":
				if inParagraph {
					text.WriteString("\n")
				}
			}
		case xml.CharData:
			if inParagraph && inText {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph {
					out = append(out, text.String())
				}
				inParagraph = false
				inText = false
				text.Reset()
			}
		}
	}
	return out, nil
}
