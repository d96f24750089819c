package main

import (
	"flag"
	"fmt"
	"os"
)

// 命令行参数定义
var (
	filePath   = flag.String("file", "", "简历文件路径，PDF 或 DOCX (必填)")
	maxLen     = flag.Int("maxlen", 1000, "显示的文本最大长度，设为-1显示全部")
	command    = flag.String("cmd", "extract", "执行的命令: parse=仅解析文本, sections=章节检测, extract=完整提取")
	mode       = flag.String("mode", "regex", "提取模式: auto, unified, per_field, regex")
	configPath = flag.String("config", "", "配置文件路径，extract 非 regex 模式时读取大模型配置")
	saveFile   = flag.String("save", "", "保存结果到文件")
)

func main() {
	flag.Parse()

	if *filePath == "" {
		fmt.Println("错误: 必须提供简历文件路径。使用 -file 参数。")
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch *command {
	case "parse":
		err = handleParseCommand(*filePath)
	case "sections":
		err = handleSectionsCommand(*filePath)
	case "extract":
		err = handleExtractCommand(*filePath, *mode)
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: parse, sections, extract\n", *command)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("处理失败: %v\n", err)
		os.Exit(1)
	}
}
