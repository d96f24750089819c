package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"cv-sidecar/internal/types"
)

const (
	docxHeadingSize = 14.0
	docxBodySize    = 11.0
	docxLineHeight  = 20.0
	docxLineWidth   = 500.0
	defaultStyle    = "Normal"

	warnEmptyDOCX = "Document appears to be empty or contains only images"
)

var errMissingDocumentPart = errors.New("word/document.xml not found")

// headingStyles 这些段落样式输出 14 号字，其余 11 号
var headingStyles = map[string]bool{
	"Heading 1": true, "Heading 2": true, "Heading 3": true, "Heading 4": true,
	"Title": true, "Subtitle": true,
	"Heading1": true, "Heading2": true, "Heading3": true,
}

type docxParagraph struct {
	style string
	text  string
}

// parseDOCX 线性遍历正文段落和顶层表格。
// 文件不是合法的 zip 包或缺少正文时，结果带错误文案，同时返回内部错误供日志使用。
func (p *Parser) parseDOCX(path string, data []byte) (*types.ParseResult, error) {
	result := newResult(types.DocumentDOCX)

	paragraphs, tables, err := readDOCX(data)
	if err != nil {
		result.Error = msgCorruptDOCX
		return result, NewCorruptDocumentError(path, err)
	}

	var texts []string
	i := 0
	for _, para := range paragraphs {
		text := strings.TrimSpace(para.text)
		if text == "" {
			continue
		}
		size := docxBodySize
		if headingStyles[para.style] {
			size = docxHeadingSize
		}
		result.Blocks = append(result.Blocks, types.TextBlock{
			Text: text,
			BBox: types.BBox{0, float64(i) * docxLineHeight, docxLineWidth, float64(i+1) * docxLineHeight},
			Font: para.style,
			Size: size,
			Page: 1,
		})
		texts = append(texts, text)
		i++
	}
	result.RawText = strings.Join(texts, "\n\n")

	for _, rows := range tables {
		if len(rows) == 0 {
			continue
		}
		result.Tables = append(result.Tables, types.TableData{Rows: padRows(rows), Page: 1})
	}
	if len(result.Tables) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Extracted %d table(s)", len(result.Tables)))
	}
	if strings.TrimSpace(result.RawText) == "" {
		result.Warnings = append(result.Warnings, warnEmptyDOCX)
	}
	result.PageCount = 1
	return result, nil
}

// readDOCX 解压并读取正文段落、顶层表格（每个单元格一个字符串）
func readDOCX(data []byte) ([]docxParagraph, [][][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}

	var documentFile, stylesFile *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			documentFile = f
		case "word/styles.xml":
			stylesFile = f
		}
	}
	if documentFile == nil {
		return nil, nil, errMissingDocumentPart
	}

	styles := docxStyles{names: map[string]string{}, fallback: defaultStyle}
	if stylesFile != nil {
		if rc, err := stylesFile.Open(); err == nil {
			styles = readStyles(rc)
			rc.Close()
		}
	}

	rc, err := documentFile.Open()
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	paragraphs, tables, err := readBody(xml.NewDecoder(rc))
	if err != nil {
		return nil, nil, fmt.Errorf("解析 document.xml 失败: %w", err)
	}
	for i := range paragraphs {
		paragraphs[i].style = styles.resolve(paragraphs[i].style)
	}
	return paragraphs, tables, nil
}

// docxStyles styleId 到显示名称的映射
type docxStyles struct {
	names    map[string]string
	fallback string // 默认段落样式名
}

func (s docxStyles) resolve(styleID string) string {
	if styleID == "" {
		return s.fallback
	}
	if name, ok := s.names[styleID]; ok {
		return name
	}
	return styleID
}

// readStyles 读取 styles.xml；内置样式名是小写的（heading 1），转换成 Word 界面上的写法
func readStyles(r io.Reader) docxStyles {
	var doc struct {
		Styles []struct {
			Type    string `xml:"type,attr"`
			Default string `xml:"default,attr"`
			StyleID string `xml:"styleId,attr"`
			Name    struct {
				Val string `xml:"val,attr"`
			} `xml:"name"`
		} `xml:"style"`
	}
	styles := docxStyles{names: map[string]string{}, fallback: defaultStyle}
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return styles
	}
	for _, st := range doc.Styles {
		name := uiStyleName(st.Name.Val)
		if name == "" {
			name = st.StyleID
		}
		styles.names[st.StyleID] = name
		if st.Type == "paragraph" && (st.Default == "1" || st.Default == "true") {
			styles.fallback = name
		}
	}
	return styles
}

func uiStyleName(name string) string {
	if name == "" || strings.ToLower(name) != name {
		return name
	}
	runes := []rune(name)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// readBody 遍历 w:body 的直接子元素
func readBody(dec *xml.Decoder) ([]docxParagraph, [][][]string, error) {
	if err := seekElement(dec, "body"); err != nil {
		return nil, nil, err
	}

	var paragraphs []docxParagraph
	var tables [][][]string
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return paragraphs, tables, nil
			}
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para, err := readParagraph(dec)
				if err != nil {
					return nil, nil, err
				}
				paragraphs = append(paragraphs, para)
			case "tbl":
				rows, err := readTable(dec)
				if err != nil {
					return nil, nil, err
				}
				tables = append(tables, rows)
			default:
				if err := dec.Skip(); err != nil {
					return nil, nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "body" {
				return paragraphs, tables, nil
			}
		}
	}
}

func seekElement(dec *xml.Decoder, local string) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("element %q not found", local)
			}
			return err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == local {
			return nil
		}
	}
}

// readParagraph 从 w:p 开始标签之后读到对应的结束标签
func readParagraph(dec *xml.Decoder) (docxParagraph, error) {
	var para docxParagraph
	var sb strings.Builder
	depth := 0
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return para, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				style, err := readParagraphStyle(dec)
				if err != nil {
					return para, err
				}
				para.style = style
				continue
			case "rPr", "del", "instrText", "fldChar":
				if err := dec.Skip(); err != nil {
					return para, err
				}
				continue
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
			depth++
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				para.text = sb.String()
				return para, nil
			}
			depth--
			if t.Name.Local == "t" {
				inText = false
			}
		}
	}
}

// readParagraphStyle 读取 w:pPr，返回 w:pStyle 的值
func readParagraphStyle(dec *xml.Decoder) (string, error) {
	style := ""
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "pStyle" {
				style = attrValue(t, "val")
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return style, nil
			}
			depth--
		}
	}
}

// readTable 读取一个表格；横向合并的单元格按 gridSpan 重复，嵌套表格忽略
func readTable(dec *xml.Decoder) ([][]string, error) {
	var rows [][]string
	var row []string
	inRow := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tr":
				inRow = true
				row = nil
			case "tc":
				text, span, err := readCell(dec)
				if err != nil {
					return nil, err
				}
				for i := 0; i < span; i++ {
					row = append(row, text)
				}
			case "trPr", "tblGrid", "tblPr", "tblPrEx":
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			default:
				if !inRow {
					if err := dec.Skip(); err != nil {
						return nil, err
					}
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tr":
				if len(row) > 0 {
					rows = append(rows, row)
				}
				inRow = false
			case "tbl":
				return rows, nil
			}
		}
	}
}

func readCell(dec *xml.Decoder) (string, int, error) {
	span := 1
	var paras []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para, err := readParagraph(dec)
				if err != nil {
					return "", 0, err
				}
				paras = append(paras, para.text)
			case "tcPr":
				// 进入 tcPr 查找 gridSpan
			case "gridSpan":
				if n, err := strconv.Atoi(attrValue(t, "val")); err == nil && n > 1 {
					span = n
				}
				if err := dec.Skip(); err != nil {
					return "", 0, err
				}
			default:
				if err := dec.Skip(); err != nil {
					return "", 0, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "tc" {
				return strings.TrimSpace(strings.Join(paras, "\n")), span, nil
			}
		}
	}
}

func attrValue(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
