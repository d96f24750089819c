package parser

import (
	"errors"
	"fmt"
)

// 调用方需要区分处理的错误
var (
	ErrNotFound          = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrLegacyFormat      = errors.New("legacy .doc format")
	ErrCorruptDocument   = errors.New("corrupt document")
	ErrEncrypted         = errors.New("encrypted pdf")
	ErrImageOnly         = errors.New("image-only pdf")
	ErrPrimaryEngine     = errors.New("primary pdf engine failed")
	ErrSecondaryEngine   = errors.New("secondary pdf engine failed")
)

// 返回给上层的固定文案
const (
	msgLegacyFormat = "Legacy .doc format is not supported. Please save the document as .docx (Word 2007+ format) and try again."
	msgCorruptDOCX  = "Cannot open file. The file may be corrupted, password protected, or not a valid DOCX file."
	msgEncrypted    = "PDF is encrypted - please provide an unlocked version"
	msgImageOnly    = "image-only-pdf: This PDF contains only scanned images. OCR is not currently supported. Please provide a text-based PDF."
	warnImageOnly   = "PDF appears to be image-only (scanned document)"
)

// ParseError 带操作和路径信息的解析错误。
// Detail 是可以直接展示给用户的文案，Error() 优先返回它。
type ParseError struct {
	Op      string
	Path    string
	BaseErr error
	Detail  string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Path != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.Path)
	}
	return fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
}

func (e *ParseError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ParseError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// NewNotFoundError 文件不存在
func NewNotFoundError(path string) error {
	return &ParseError{
		Op:      "stat",
		Path:    path,
		BaseErr: ErrNotFound,
		Detail:  fmt.Sprintf("File not found: %s", path),
	}
}

// NewUnsupportedFormatError 既不是 PDF 也不是 DOCX
func NewUnsupportedFormatError(path, ext string) error {
	return &ParseError{
		Op:      "detect",
		Path:    path,
		BaseErr: ErrUnsupportedFormat,
		Detail:  fmt.Sprintf("Unsupported file type: %s. Supported: PDF, DOCX", ext),
	}
}

// NewLegacyFormatError 旧版二进制 .doc
func NewLegacyFormatError(path string) error {
	return &ParseError{
		Op:      "detect",
		Path:    path,
		BaseErr: ErrLegacyFormat,
		Detail:  msgLegacyFormat,
	}
}

// NewCorruptDocumentError DOCX 不是合法的 zip 包
func NewCorruptDocumentError(path string, cause error) error {
	return &ParseError{
		Op:      "open",
		Path:    path,
		BaseErr: fmt.Errorf("%w: %v", ErrCorruptDocument, cause),
		Detail:  msgCorruptDOCX,
	}
}

// IsFatal 判断错误是否应直接返回给调用方（不存在、不支持、旧格式）
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrLegacyFormat)
}
