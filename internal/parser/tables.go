package parser

import (
	"math"
	"unicode/utf8"

	"cv-sidecar/internal/types"
)

const (
	minTableRows      = 3
	minTableColumns   = 2
	columnAlignTol    = 6.0 // pt
	maxMeanCellLength = 30  // runes
)

// detectTables 从主引擎的行数据中找表格：
// 至少 3 个连续行，每行段数相同且不少于 2，各列左边缘对齐，单元格平均长度较短。
// 两栏正文也会满足“多段”，平均长度的限制用来把长句子排除在外。
func detectTables(page pageLayout) []types.TableData {
	var tables []types.TableData
	var run []layoutRow

	flush := func() {
		if len(run) >= minTableRows && meanCellLength(run) <= maxMeanCellLength {
			tables = append(tables, rowsToTable(run, page.Number))
		}
		run = nil
	}

	for _, row := range page.Rows {
		if len(row.Segments) < minTableColumns {
			flush()
			continue
		}
		if len(run) > 0 && !alignedWith(run[len(run)-1], row) {
			flush()
		}
		run = append(run, row)
	}
	flush()
	return tables
}

func alignedWith(prev, row layoutRow) bool {
	if len(prev.Segments) != len(row.Segments) {
		return false
	}
	for i := range row.Segments {
		if math.Abs(prev.Segments[i].X0-row.Segments[i].X0) > columnAlignTol {
			return false
		}
	}
	return true
}

func meanCellLength(rows []layoutRow) float64 {
	total, cells := 0, 0
	for _, row := range rows {
		for _, seg := range row.Segments {
			total += utf8.RuneCountInString(seg.Text)
			cells++
		}
	}
	if cells == 0 {
		return 0
	}
	return float64(total) / float64(cells)
}

func rowsToTable(rows []layoutRow, page int) types.TableData {
	table := types.TableData{Rows: make([][]string, 0, len(rows)), Page: page}
	for _, row := range rows {
		cells := make([]string, len(row.Segments))
		for i, seg := range row.Segments {
			cells[i] = seg.Text
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

// padRows 把参差不齐的行补齐成矩形，缺失的单元格为空字符串
func padRows(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		padded := make([]string, width)
		copy(padded, row)
		out = append(out, padded)
	}
	return out
}
