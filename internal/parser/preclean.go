package parser

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const warnPreCleaned = "PDF pre-cleaned with garbage collection"

var disableConfigDirOnce sync.Once

// preCleanPDF 用 pdfcpu 重写一遍文档：去掉未引用对象、合并重复资源、重建交叉引用表。
// 失败时返回错误，调用方继续使用原始字节。
func preCleanPDF(data []byte) (cleaned []byte, err error) {
	disableConfigDirOnce.Do(api.DisableConfigDir)

	defer func() {
		if rec := recover(); rec != nil {
			cleaned, err = nil, fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &buf, conf); err != nil {
		return nil, fmt.Errorf("pdfcpu optimize: %w", err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("pdfcpu optimize: empty output")
	}
	return buf.Bytes(), nil
}
