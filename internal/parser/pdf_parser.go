package parser

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"cv-sidecar/internal/tracing"
	"cv-sidecar/internal/types"
)

const (
	warnSecondaryFallback = "Used secondary text fallback (primary extraction was insufficient)"
	warnSecondaryOnly     = "Used secondary-only extraction (primary engine unavailable)"
)

// parsePDF PDF 级联解析：预清理、可读性检查、主引擎、备用引擎兜底
func (p *Parser) parsePDF(ctx context.Context, path string, data []byte) *types.ParseResult {
	result := newResult(types.DocumentPDF)

	working := data
	if p.preClean {
		cleaned, err := preCleanPDF(data)
		if err != nil {
			p.logger.Debug().Err(err).Str("path", tracing.SafePath(path)).Msg("PDF 预清理失败，使用原始文件")
		} else {
			working = cleaned
			result.Warnings = append(result.Warnings, warnPreCleaned)
		}
	}

	// 检查在原始文件上进行，加密标记在清理后的副本里可能丢失
	if warning, errMsg := p.primary.check(data); errMsg != "" {
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		result.Error = errMsg
		return result
	}

	if err := p.extractPrimary(ctx, path, working, result); err != nil {
		p.logger.Warn().Err(err).Str("path", tracing.SafePath(path)).Msg("主引擎失败，改用备用引擎")
		result.Warnings = append(result.Warnings, fmt.Sprintf("Primary engine failed (%s: %s)", errorKind(err), rootMessage(err)))
		result.RawText = ""
		result.Blocks = []types.TextBlock{}
		result.Tables = []types.TableData{}
		result.PageCount = 0
		p.extractSecondaryOnly(ctx, path, working, result)
	}
	return result
}

// extractPrimary 主引擎提取。返回错误表示主引擎不可用，result 中已写入的内容由调用方清空。
func (p *Parser) extractPrimary(ctx context.Context, path string, data []byte, result *types.ParseResult) error {
	ctx, span := parserTracer.Start(ctx, "parser.pdf.primary")
	defer span.End()

	pages, err := p.primary.pages(data)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeParse)
		return err
	}

	var pageTexts []string
	var tablePages []int
	var heuristicTables []types.TableData
	for _, page := range pages {
		var text string
		var ordered []LayoutBlock
		if p.columns.IsMultiColumn(page.Blocks, page.Width) {
			text, ordered = p.columns.SplitColumns(page.Blocks)
			result.Warnings = append(result.Warnings, fmt.Sprintf("Page %d: Multi-column layout detected and processed", page.Number))
		} else {
			ordered = textBlocksOnly(page.Blocks)
			sortTopToBottom(ordered)
			text = blocksText(ordered)
		}
		if text != "" {
			pageTexts = append(pageTexts, text)
		}
		result.Blocks = append(result.Blocks, toTextBlocks(ordered, page.Number)...)

		if tables := detectTables(page); len(tables) > 0 {
			tablePages = append(tablePages, page.Number)
			heuristicTables = append(heuristicTables, tables...)
		}
	}

	result.RawText = strings.Join(pageTexts, "\n\n")
	result.PageCount = len(pages)
	span.SetAttributes(
		attribute.Int("pdf.pages", len(pages)),
		attribute.Int("pdf.blocks", len(result.Blocks)),
	)

	minChars := p.minCharsPerPage * max(result.PageCount, 1)
	if charCount(result.RawText) < minChars && p.secondary != nil {
		st, err := p.runSecondary(ctx, data, path)
		if err != nil {
			p.logger.Warn().Err(err).Msg("备用引擎文本提取失败")
		} else if charCount(st.Text) > charCount(result.RawText) {
			result.RawText = st.Text
			result.Blocks = []types.TextBlock{}
			result.Warnings = append(result.Warnings, warnSecondaryFallback)
		}
	}

	if len(tablePages) > 0 {
		tables := heuristicTables
		if te, ok := p.secondary.(TableExtractor); ok && p.secondaryTables {
			extracted, err := te.ExtractTables(ctx, data, path, tablePages)
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("Table extraction failed: %v", err))
			} else if len(extracted) > 0 {
				tables = extracted
			}
		}
		if len(tables) > 0 {
			result.Tables = tables
			result.Warnings = append(result.Warnings, fmt.Sprintf("Extracted %d table(s) from pages: %s", len(tables), formatPageList(tablePages)))
		}
	}
	return nil
}

// extractSecondaryOnly 主引擎不可用时只用备用引擎提取文本和表格
func (p *Parser) extractSecondaryOnly(ctx context.Context, path string, data []byte, result *types.ParseResult) {
	if p.secondary == nil {
		result.Error = "Both primary and secondary engines failed: no secondary engine configured"
		return
	}

	st, err := p.runSecondary(ctx, data, path)
	if err != nil {
		result.Error = fmt.Sprintf("Both primary and secondary engines failed: %v", err)
		return
	}
	result.RawText = st.Text
	result.PageCount = st.PageCount

	if te, ok := p.secondary.(TableExtractor); ok && p.secondaryTables {
		tables, err := te.ExtractTables(ctx, data, path, nil)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Table extraction failed: %v", err))
		} else if len(tables) > 0 {
			result.Tables = tables
			result.Warnings = append(result.Warnings, fmt.Sprintf("Extracted %d table(s) from pages: %s", len(tables), formatPageList(tablePagesOf(tables))))
		}
	}
	result.Warnings = append(result.Warnings, warnSecondaryOnly)
}

func (p *Parser) runSecondary(ctx context.Context, data []byte, path string) (*SecondaryText, error) {
	ctx, span := parserTracer.Start(ctx, "parser.pdf.secondary")
	defer span.End()
	span.SetAttributes(attribute.String("pdf.engine", p.secondary.Name()))

	st, err := safeSecondaryText(ctx, p.secondary, data, path)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeParse)
		return nil, err
	}
	return st, nil
}

// charCount 去掉首尾空白后的字符数
func charCount(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// formatPageList 输出形如 [1, 2] 的页码列表
func formatPageList(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func tablePagesOf(tables []types.TableData) []int {
	seen := make(map[int]bool)
	var pages []int
	for _, t := range tables {
		if !seen[t.Page] {
			seen[t.Page] = true
			pages = append(pages, t.Page)
		}
	}
	return pages
}

// errorKind 主引擎失败的类别：panic，或错误链上第一个具名错误类型
func errorKind(err error) string {
	var pe *panicError
	if errors.As(err, &pe) {
		return "panic"
	}
	for e := err; e != nil; e = unwrapLast(e) {
		t := reflect.TypeOf(e)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Name() != "" && t.PkgPath() != "errors" && t.PkgPath() != "fmt" {
			return t.Name()
		}
	}
	return "error"
}

func rootMessage(err error) string {
	var pe *panicError
	if errors.As(err, &pe) {
		return fmt.Sprint(pe.value)
	}
	return err.Error()
}

// unwrapLast 多重包装时取最后一个，ErrPrimaryEngine 总是放在第一个
func unwrapLast(err error) error {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap()
	case interface{ Unwrap() []error }:
		if errs := u.Unwrap(); len(errs) > 0 {
			return errs[len(errs)-1]
		}
	}
	return nil
}
