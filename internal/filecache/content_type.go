package filecache

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType は種類を決められないファイルの Content-Type
const DefaultContentType = "application/octet-stream"

// ContentType はファイルの Content-Type を決める
// 拡張子で決まらず sniff が有効な場合は内容から推定する
func ContentType(path string, sniff bool) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}

	if sniff {
		if detected, err := mimetype.DetectFile(path); err == nil {
			return detected.String()
		}
	}

	return DefaultContentType
}
