package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"cv-sidecar/internal/constants"
)

// maxLineBytes 单行请求上限，detect_sections 会带整份简历文本
const maxLineBytes = 16 * 1024 * 1024

// StdioServer 从 in 逐行读请求，向 out 逐行写响应。
// out 上只出现协议行，日志必须写到别处。
type StdioServer struct {
	handler *Handler
	in      io.Reader
	out     *bufio.Writer
	logger  zerolog.Logger

	writeMu sync.Mutex
}

// NewStdioServer 创建 stdio 服务
func NewStdioServer(h *Handler, in io.Reader, out io.Writer, logger zerolog.Logger) *StdioServer {
	return &StdioServer{handler: h, in: in, out: bufio.NewWriter(out), logger: logger}
}

// Serve 处理请求直到输入结束、收到 shutdown 或 ctx 取消
func (s *StdioServer) Serve(ctx context.Context) error {
	if err := s.writeLine(Status{Status: constants.StatusModelLoaded, Model: s.handler.ModelName()}); err != nil {
		return err
	}

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		resp, shutdown := s.handler.HandleLine(ctx, line, s.writeLine)
		if err := s.writeLine(resp); err != nil {
			return err
		}
		if shutdown {
			s.logger.Info().Msg("stdio 循环退出")
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		// 超长的一行无法恢复同步，报告后退出
		_ = s.writeLine(Response{Success: false, Error: fmt.Sprintf("read error: %v", err)})
		return fmt.Errorf("读取标准输入失败: %w", err)
	}
	return nil
}

// writeLine 写一行 JSON 并立即刷新
func (s *StdioServer) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("响应序列化失败")
		data, _ = json.Marshal(Response{Success: false, Error: err.Error()})
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("写标准输出失败: %w", err)
	}
	return s.out.Flush()
}
