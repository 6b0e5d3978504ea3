package server

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed all:seed
var seedFS embed.FS

// seedStorage は新しく作成したストレージへ初期ファイルを書き出す
func seedStorage(root string) error {
	sub, err := fs.Sub(seedFS, "seed")
	if err != nil {
		return fmt.Errorf("埋め込み初期ファイルの取得に失敗: %w", err)
	}
	if err := os.CopyFS(root, sub); err != nil {
		return fmt.Errorf("初期ファイルの書き出しに失敗: %w", err)
	}
	return nil
}
