package ignore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 用户自定义忽略规则所在的文件
const FileName = ".ufsignore"

// Matcher 判断递归导入时一个路径是否应该被跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// defaultRules 系统级默认忽略规则，强制生效
var defaultRules = []string{
	// --- 关键系统目录 ---
	".ufs", // 仓库元数据目录，索引它会导致无限递归
	".git",

	// --- 安全与配置 ---
	"config.yaml", // 防止 S3 Secret Key 泄露
	".env",

	// --- 常见垃圾文件 ---
	".DS_Store",
	"Thumbs.db",
}

// NewMatcher 初始化忽略匹配器
// rootPath: 导入的根目录 (用于查找 .ufsignore)
// extra: 调用方附加的规则 (例如命令行 --ignore)，优先级高于文件
func NewMatcher(rootPath string, extra ...string) (*Matcher, error) {
	rules := append(slices.Clone(defaultRules), extra...)

	ignoreFilePath := filepath.Join(rootPath, FileName)
	info, err := os.Stat(ignoreFilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Matcher{ignorer: gitignore.CompileIgnoreLines(rules...)}, nil
	case err != nil:
		return nil, err
	case info.IsDir():
		return nil, fmt.Errorf("%s is a directory", ignoreFilePath)
	}

	// 文件规则在前，附加规则在后，后出现的规则覆盖前面的
	data, err := os.ReadFile(ignoreFilePath)
	if err != nil {
		return nil, err
	}
	lines := append(strings.Split(string(data), "\n"), rules...)
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于导入根目录的路径 (例如 "data/model.bin")，目录可以带尾部斜杠
func (m *Matcher) Matches(path string) bool {
	if m.ignorer == nil {
		return false
	}
	path = strings.TrimSuffix(filepath.ToSlash(path), "/")
	if path == "" || path == "." {
		return false
	}
	return m.ignorer.MatchesPath(path)
}
