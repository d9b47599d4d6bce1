package doc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var reBlankRuns = regexp.MustCompile(`\n{3,}`)

// parseDocx extracts the body text of a docx file. Paragraphs are separated
// by blank lines and heading paragraphs are prefixed with "# " so the
// chunker can split on them. Deleted revisions are skipped.
func parseDocx(content []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("document.xml not found in docx")
	}
	if docFile.UncompressedSize64 > docXMLMax {
		return nil, fmt.Errorf("document.xml too large: %d bytes",
			docFile.UncompressedSize64)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, int64(docXMLMax)))

	var (
		sb        strings.Builder
		para      strings.Builder
		inText    bool
		heading   bool
		delDepth  int
		tblDepth  int
		cellIdx   int
		rowBuffer []string
	)

	flushPara := func() {
		text := strings.TrimSpace(para.String())
		para.Reset()
		isHeading := heading
		heading = false
		if text == "" {
			return
		}
		if tblDepth > 0 {
			rowBuffer = append(rowBuffer, text)
			return
		}
		if isHeading {
			sb.WriteString("# ")
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "del":
				delDepth++
			case "t":
				inText = true
			case "pStyle":
				for _, a := range t.Attr {
					if a.Name.Local == "val" && isHeadingStyle(a.Value) {
						heading = true
					}
				}
			case "tab":
				if delDepth == 0 {
					para.WriteRune('\t')
				}
			case "br", "cr":
				if delDepth == 0 {
					para.WriteByte('\n')
				}
			case "noBreakHyphen":
				if delDepth == 0 {
					para.WriteRune('-')
				}
			case "tbl":
				tblDepth++
			case "tr":
				cellIdx = 0
				rowBuffer = rowBuffer[:0]
			case "tc":
				cellIdx++
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if delDepth == 0 {
					flushPara()
				} else {
					para.Reset()
				}
			case "tc":
				if len(rowBuffer) < cellIdx {
					rowBuffer = append(rowBuffer, "")
				}
			case "tr":
				if tblDepth > 0 && len(rowBuffer) > 0 {
					sb.WriteString(strings.Join(rowBuffer, "\t"))
					sb.WriteByte('\n')
				}
				rowBuffer = rowBuffer[:0]
			case "tbl":
				if tblDepth > 0 {
					tblDepth--
				}
				if tblDepth == 0 {
					sb.WriteByte('\n')
				}
			case "del":
				if delDepth > 0 {
					delDepth--
				}
			}

		case xml.CharData:
			if delDepth != 0 || !inText {
				continue
			}
			para.Write(t)
		}
	}

	text := strings.TrimSpace(sb.String())
	text = reBlankRuns.ReplaceAllString(text, "\n\n")
	if text != "" {
		text += "\n"
	}
	return []byte(text), nil
}

func isHeadingStyle(style string) bool {
	s := strings.ToLower(style)
	return strings.HasPrefix(s, "heading") || s == "title"
}
