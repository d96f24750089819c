package parser

import (
	"math"
	"sort"
	"strings"

	"cv-sidecar/internal/types"
)

const (
	// DefaultColumnGapThreshold 相邻块左边缘间距超过该值(pt)才可能是分栏
	DefaultColumnGapThreshold = 100.0
	// DefaultColumnWidthRatio 间距须小于页宽的该比例，否则视为同一栏中的缩进
	DefaultColumnWidthRatio = 0.7
	// DefaultMinCharsPerPage 主引擎每页至少应提取的字符数
	DefaultMinCharsPerPage = 50
)

// LayoutBlock 主引擎产出的一个版面块（一段文字或一个图形）
type LayoutBlock struct {
	Lines []string
	BBox  types.BBox // 原点左上角
	Font  string
	Size  float64
	// Image 图片或矢量图形块，不参与分栏判断，也不输出文字
	Image bool
}

// Text 块内各行用换行连接
func (b LayoutBlock) Text() string {
	return strings.Join(b.Lines, "\n")
}

func (b LayoutBlock) centerX() float64 {
	return (b.BBox[0] + b.BBox[2]) / 2
}

// ColumnDetector 分栏检测参数
type ColumnDetector struct {
	GapThreshold  float64
	MaxWidthRatio float64
}

// DefaultColumnDetector 默认参数：100pt 间距，页宽 70%
func DefaultColumnDetector() ColumnDetector {
	return ColumnDetector{
		GapThreshold:  DefaultColumnGapThreshold,
		MaxWidthRatio: DefaultColumnWidthRatio,
	}
}

// IsMultiColumn 判断页面是否为多栏布局。
// 文字块左边缘四舍五入到 10 的倍数后去重排序，
// 存在大于阈值且小于页宽 70% 的间距即认为有多栏。
func (d ColumnDetector) IsMultiColumn(blocks []LayoutBlock, pageWidth float64) bool {
	var xs []float64
	for _, b := range blocks {
		if b.Image {
			continue
		}
		xs = append(xs, b.BBox[0])
	}
	if len(xs) < 2 {
		return false
	}

	seen := make(map[float64]bool, len(xs))
	var distinct []float64
	for _, x := range xs {
		r := roundToTen(x)
		if !seen[r] {
			seen[r] = true
			distinct = append(distinct, r)
		}
	}
	sort.Float64s(distinct)

	for i := 1; i < len(distinct); i++ {
		gap := distinct[i] - distinct[i-1]
		if gap > d.GapThreshold && gap < pageWidth*d.MaxWidthRatio {
			return true
		}
	}
	return false
}

// FindColumnBoundary 在所有文字块的左右边缘中找最大的空白间距，返回其中点。
// 没有超过阈值的间距时 ok 为 false。
func (d ColumnDetector) FindColumnBoundary(blocks []LayoutBlock) (boundary float64, ok bool) {
	seen := make(map[float64]bool)
	var edges []float64
	for _, b := range blocks {
		if b.Image {
			continue
		}
		for _, x := range []float64{b.BBox[0], b.BBox[2]} {
			if !seen[x] {
				seen[x] = true
				edges = append(edges, x)
			}
		}
	}
	if len(edges) == 0 {
		return 0, false
	}
	sort.Float64s(edges)

	// 跨栏的标题块宽度超过边缘总跨度的一半，不参与覆盖判断
	maxBlockWidth := (edges[len(edges)-1] - edges[0]) / 2
	maxGap := 0.0
	for i := 1; i < len(edges); i++ {
		gap := edges[i] - edges[i-1]
		if coveredByBlock(blocks, (edges[i-1]+edges[i])/2, maxBlockWidth) {
			continue
		}
		if gap > maxGap && gap > d.GapThreshold {
			maxGap = gap
			boundary = (edges[i-1] + edges[i]) / 2
			ok = true
		}
	}
	return boundary, ok
}

// coveredByBlock 落在某个栏内文字块内部的间距不是栏间空白。宽于 maxWidth 的块不算
func coveredByBlock(blocks []LayoutBlock, x, maxWidth float64) bool {
	for _, b := range blocks {
		if b.Image || b.BBox[2]-b.BBox[0] > maxWidth {
			continue
		}
		if b.BBox[0] < x && x < b.BBox[2] {
			return true
		}
	}
	return false
}

// SplitColumns 按分界线把文字块分成左右两栏，各自从上到下排序。
// 返回的文本先左栏后右栏，中间空一行；找不到分界线时按从上到下的顺序输出。
func (d ColumnDetector) SplitColumns(blocks []LayoutBlock) (string, []LayoutBlock) {
	boundary, ok := d.FindColumnBoundary(blocks)
	if !ok {
		ordered := textBlocksOnly(blocks)
		sortTopToBottom(ordered)
		return blocksText(ordered), ordered
	}

	var left, right []LayoutBlock
	for _, b := range blocks {
		if b.Image {
			continue
		}
		if b.centerX() < boundary {
			left = append(left, b)
		} else {
			right = append(right, b)
		}
	}
	sort.SliceStable(left, func(i, j int) bool { return left[i].BBox[1] < left[j].BBox[1] })
	sort.SliceStable(right, func(i, j int) bool { return right[i].BBox[1] < right[j].BBox[1] })

	text := blocksText(left)
	if rightText := blocksText(right); rightText != "" {
		text += "\n\n" + rightText
	}
	return text, append(left, right...)
}

// blocksText 拼接块内所有非空行
func blocksText(blocks []LayoutBlock) string {
	var lines []string
	for _, b := range blocks {
		if b.Image {
			continue
		}
		for _, line := range b.Lines {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func textBlocksOnly(blocks []LayoutBlock) []LayoutBlock {
	out := make([]LayoutBlock, 0, len(blocks))
	for _, b := range blocks {
		if !b.Image {
			out = append(out, b)
		}
	}
	return out
}

// sortTopToBottom 先按上边缘再按左边缘排序
func sortTopToBottom(blocks []LayoutBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].BBox[1] != blocks[j].BBox[1] {
			return blocks[i].BBox[1] < blocks[j].BBox[1]
		}
		return blocks[i].BBox[0] < blocks[j].BBox[0]
	})
}

// toTextBlocks 转成对外的 TextBlock，图形块不输出
func toTextBlocks(blocks []LayoutBlock, page int) []types.TextBlock {
	out := make([]types.TextBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Image {
			continue
		}
		out = append(out, types.TextBlock{
			Text: b.Text(),
			BBox: b.BBox,
			Font: b.Font,
			Size: b.Size,
			Page: page,
		})
	}
	return out
}

// roundToTen 四舍五入到 10 的倍数，.5 时取偶数
func roundToTen(x float64) float64 {
	return math.RoundToEven(x/10) * 10
}
