package demo

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"hikyaku/internal/action"
	"hikyaku/internal/apperror"
)

// UploadDir はアップロードしたファイルを置くストレージ内のディレクトリ
const UploadDir = "uploads"

// RegisterMultipartActions はサンプルの multipart アクションを登録する
func RegisterMultipartActions(r *action.MultipartRegistry, storageRoot string) error {
	u := &uploader{dir: filepath.Join(storageRoot, UploadDir)}
	if err := r.Register(action.MultipartDescriptor{
		Name:  "upload",
		Files: []string{"file"},
	}, u.handle); err != nil {
		return fmt.Errorf("アクション upload の登録に失敗: %w", err)
	}
	return nil
}

type uploader struct {
	dir string
}

// handle はファイルをストレージへ保存し、配信パスを返す
func (u *uploader) handle(c *gin.Context, form *multipart.Form) error {
	files := form.File["file"]
	if len(files) == 0 {
		return apperror.InvalidValue("file")
	}
	header := files[0]

	name, ok := safeName(header.Filename)
	if override, given := action.FormValue(form, "name"); given {
		name, ok = safeName(override)
	}
	if !ok {
		return fmt.Errorf("無効なファイル名: %q", header.Filename)
	}

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return fmt.Errorf("アップロード先の作成に失敗: %w", err)
	}
	if err := c.SaveUploadedFile(header, filepath.Join(u.dir, name)); err != nil {
		return fmt.Errorf("ファイルの保存に失敗: %w", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"status": true,
		"path":   path.Join("/", UploadDir, name),
		"size":   header.Size,
	})
	return nil
}

// safeName はクライアントが送ったパスからファイル名だけを取り出す
func safeName(raw string) (string, bool) {
	name := filepath.Base(filepath.Clean("/" + filepath.ToSlash(raw)))
	if name == "/" || name == "." || name == ".." {
		return "", false
	}
	return name, true
}
