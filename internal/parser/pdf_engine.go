package parser

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"cv-sidecar/internal/types"
)

// 默认页面尺寸 (US Letter)，MediaBox 缺失时使用
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// pageLayout 主引擎对单页的提取结果
type pageLayout struct {
	Number int // 从1开始
	Width  float64
	Height float64
	Blocks []LayoutBlock
	Rows   []layoutRow
}

// layoutRow 同一基线上的文字，按水平间隙切成若干段
type layoutRow struct {
	Top      float64
	Bottom   float64
	Segments []layoutSegment
}

// layoutSegment 一行中连续的一段文字
type layoutSegment struct {
	Text string
	X0   float64
	X1   float64
	Top  float64
	Bot  float64
	Font string
	Size float64
}

// glyph 转换到左上角坐标系后的字符
type glyph struct {
	s    string
	x0   float64
	x1   float64
	base float64 // 基线，左上角坐标系
	font string
	size float64
}

// primaryEngine 带坐标的主引擎
type primaryEngine interface {
	check(data []byte) (warning, errMsg string)
	pages(data []byte) ([]pageLayout, error)
}

// ledongthucEngine 基于 github.com/ledongthuc/pdf 的主引擎
type ledongthucEngine struct{}

func (ledongthucEngine) check(data []byte) (string, string) { return checkReadable(data) }

func (ledongthucEngine) pages(data []byte) ([]pageLayout, error) { return extractPrimaryPages(data) }

// panicError 第三方库 panic 时携带的值
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// openPrimary 打开 PDF；ledongthuc/pdf 遇到损坏的结构会 panic，这里统一转成错误
func openPrimary(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("%w: %w", ErrPrimaryEngine, &panicError{value: rec})
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// checkReadable 可读性检查：加密或首页没有文字时返回对应的错误结果文案
func checkReadable(data []byte) (warning string, errMsg string) {
	r, err := openPrimary(data)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) || strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return "", msgEncrypted
		}
		return "", fmt.Sprintf("Failed to open PDF: %v", err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			warning, errMsg = "", fmt.Sprintf("Error checking PDF: %v", rec)
		}
	}()

	if !r.Trailer().Key("Encrypt").IsNull() {
		return "", msgEncrypted
	}

	if r.NumPage() > 0 {
		page := r.Page(1)
		if page.V.IsNull() {
			return "", "Cannot extract text from PDF: first page is missing"
		}
		if !pageHasText(page) {
			return warnImageOnly, msgImageOnly
		}
	}
	return "", ""
}

func pageHasText(page pdf.Page) bool {
	for _, t := range page.Content().Text {
		if strings.TrimSpace(t.S) != "" {
			return true
		}
	}
	return false
}

// extractPrimaryPages 用 ledongthuc/pdf 逐页提取带坐标的版面块。
// 任何 panic 都转换为 ErrPrimaryEngine，由上层触发备用引擎。
func extractPrimaryPages(data []byte) (pages []pageLayout, err error) {
	r, err := openPrimary(data)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("%w: %w", ErrPrimaryEngine, &panicError{value: rec})
		}
	}()

	n := r.NumPage()
	pages = make([]pageLayout, 0, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		width, height := pageSize(page)
		layout := pageLayout{Number: i, Width: width, Height: height}
		if page.V.IsNull() {
			pages = append(pages, layout)
			continue
		}

		content := page.Content()
		glyphs := toGlyphs(content.Text, height)
		layout.Rows = groupRows(glyphs)
		layout.Blocks = groupBlocks(layout.Rows)
		for _, rect := range content.Rect {
			layout.Blocks = append(layout.Blocks, LayoutBlock{
				BBox:  types.BBox{rect.Min.X, height - rect.Max.Y, rect.Max.X, height - rect.Min.Y},
				Image: true,
			})
		}
		sortTopToBottom(layout.Blocks)
		pages = append(pages, layout)
	}
	return pages, nil
}

// pageSize 读取 MediaBox，沿 Parent 链查找继承值
func pageSize(page pdf.Page) (float64, float64) {
	v := page.V
	for depth := 0; depth < 16 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageWidth, defaultPageHeight
}

func toGlyphs(texts []pdf.Text, pageHeight float64) []glyph {
	out := make([]glyph, 0, len(texts))
	for _, t := range texts {
		if t.S == "" || t.S == "\n" {
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = 10
		}
		out = append(out, glyph{
			s:    t.S,
			x0:   t.X,
			x1:   t.X + t.W,
			base: pageHeight - t.Y,
			font: t.Font,
			size: size,
		})
	}
	return out
}

// groupRows 按基线把字符分行，行内按水平间隙切段。
// 两栏布局中同一高度的左右两行会被切成不同的段。
func groupRows(glyphs []glyph) []layoutRow {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].base < sorted[j].base })

	var buckets [][]glyph
	var current []glyph
	currentBase := math.Inf(-1)
	for _, g := range sorted {
		tolerance := math.Max(2, g.size*0.4)
		if len(current) > 0 && g.base-currentBase > tolerance {
			buckets = append(buckets, current)
			current = nil
		}
		if len(current) == 0 {
			currentBase = g.base
		}
		current = append(current, g)
	}
	if len(current) > 0 {
		buckets = append(buckets, current)
	}

	rows := make([]layoutRow, 0, len(buckets))
	for _, bucket := range buckets {
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].x0 < bucket[j].x0 })
		row := layoutRow{Segments: splitSegments(bucket)}
		if len(row.Segments) == 0 {
			continue
		}
		row.Top, row.Bottom = row.Segments[0].Top, row.Segments[0].Bot
		for _, seg := range row.Segments[1:] {
			row.Top = math.Min(row.Top, seg.Top)
			row.Bottom = math.Max(row.Bottom, seg.Bot)
		}
		rows = append(rows, row)
	}
	return rows
}

// splitSegments 把一行字符拼成词并切段：
// 间隙超过 0.25 倍字号补空格，超过 2.5 倍字号另起一段
func splitSegments(row []glyph) []layoutSegment {
	var segments []layoutSegment
	var sb strings.Builder
	var seg *layoutSegment
	lastX1 := 0.0

	flush := func() {
		if seg == nil {
			return
		}
		seg.Text = strings.TrimSpace(sb.String())
		if seg.Text != "" {
			segments = append(segments, *seg)
		}
		seg = nil
		sb.Reset()
	}

	for _, g := range row {
		isSpace := strings.TrimFunc(g.s, unicode.IsSpace) == ""
		if seg != nil {
			gap := g.x0 - lastX1
			switch {
			case gap > g.size*2.5 && !isSpace:
				flush()
			case gap > g.size*0.25 && !isSpace && !strings.HasSuffix(sb.String(), " "):
				sb.WriteByte(' ')
			}
		}
		if seg == nil {
			if isSpace {
				continue
			}
			seg = &layoutSegment{
				X0:   g.x0,
				Top:  g.base - g.size,
				Bot:  g.base + g.size*0.2,
				Font: g.font,
				Size: g.size,
			}
		}
		if isSpace {
			if !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		} else {
			sb.WriteString(g.s)
		}
		if g.x1 > seg.X1 {
			seg.X1 = g.x1
		}
		seg.Top = math.Min(seg.Top, g.base-g.size)
		seg.Bot = math.Max(seg.Bot, g.base+g.size*0.2)
		if !isSpace {
			// 下一段的间隙从最后一个可见字符算起
			lastX1 = g.x1
		}
	}
	flush()
	return segments
}

// groupBlocks 把上下相邻、水平重叠、字号相近的段合并成段落块
func groupBlocks(rows []layoutRow) []LayoutBlock {
	type openBlock struct {
		block  LayoutBlock
		bottom float64
	}
	var blocks []*openBlock

	for _, row := range rows {
		for _, seg := range row.Segments {
			var target *openBlock
			for i := len(blocks) - 1; i >= 0; i-- {
				b := blocks[i]
				gap := seg.Top - b.bottom
				sameSize := math.Abs(b.block.Size-seg.Size) <= 1
				overlaps := seg.X0 < b.block.BBox[2] && seg.X1 > b.block.BBox[0]
				if sameSize && overlaps && gap <= seg.Size*0.5 && gap >= -seg.Size*0.5 {
					target = b
					break
				}
			}
			if target == nil {
				blocks = append(blocks, &openBlock{
					block: LayoutBlock{
						Lines: []string{seg.Text},
						BBox:  types.BBox{seg.X0, seg.Top, seg.X1, seg.Bot},
						Font:  seg.Font,
						Size:  seg.Size,
					},
					bottom: seg.Bot,
				})
				continue
			}
			target.block.Lines = append(target.block.Lines, seg.Text)
			target.block.BBox[0] = math.Min(target.block.BBox[0], seg.X0)
			target.block.BBox[2] = math.Max(target.block.BBox[2], seg.X1)
			target.block.BBox[3] = math.Max(target.block.BBox[3], seg.Bot)
			target.bottom = seg.Bot
		}
	}

	out := make([]LayoutBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.block)
	}
	return out
}
