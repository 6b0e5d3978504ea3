package action

import (
	"fmt"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"hikyaku/internal/apperror"
)

// MultipartDescriptor は multipart/form-data アクションの記述子
type MultipartDescriptor struct {
	Name   string   // アクション名
	Fields []string // 必須パラメータ（値またはファイル）
	Files  []string // ファイルとして必須のパラメータ
}

// MultipartHandlerFunc は multipart アクションの処理本体
// レスポンスはハンドラ自身が書き込む
type MultipartHandlerFunc func(c *gin.Context, form *multipart.Form) error

// MultipartEntry は登録済みの multipart アクション
type MultipartEntry struct {
	Descriptor MultipartDescriptor
	Handler    MultipartHandlerFunc
}

// Validate はフォームに必須パラメータが揃っているか検証する
func (e *MultipartEntry) Validate(form *multipart.Form) error {
	var missing []string
	for _, field := range e.Descriptor.Fields {
		if !HasFormField(form, field) {
			missing = append(missing, field)
		}
	}
	// テキスト値しかないファイル項目は種類違い
	var invalid []string
	for _, field := range e.Descriptor.Files {
		switch {
		case hasFormFile(form, field):
		case HasFormField(form, field):
			invalid = append(invalid, field)
		default:
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return apperror.FieldNotFound(missing...)
	}
	if len(invalid) > 0 {
		return apperror.InvalidValue(invalid...)
	}
	return nil
}

// MultipartRegistry は multipart アクションの登録表
type MultipartRegistry struct {
	table table[*MultipartEntry]
}

// NewMultipartRegistry は空の MultipartRegistry を作成する
func NewMultipartRegistry() *MultipartRegistry {
	return &MultipartRegistry{}
}

// Register は multipart アクションを登録する
func (r *MultipartRegistry) Register(desc MultipartDescriptor, handler MultipartHandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("multipart action %s: handler is nil", desc.Name)
	}
	desc.Fields = append([]string(nil), desc.Fields...)
	desc.Files = append([]string(nil), desc.Files...)
	return r.table.add(desc.Name, &MultipartEntry{Descriptor: desc, Handler: handler})
}

// MustRegister は Register に失敗した場合 panic する
func (r *MultipartRegistry) MustRegister(desc MultipartDescriptor, handler MultipartHandlerFunc) {
	if err := r.Register(desc, handler); err != nil {
		panic(err)
	}
}

// Resolve は名前から multipart アクションを解決する
func (r *MultipartRegistry) Resolve(name string) (*MultipartEntry, error) {
	entry, ok := r.table.get(name)
	if !ok {
		return nil, apperror.ActionNotFound(name)
	}
	return entry, nil
}

// Names は登録済みの multipart アクション名を返す
func (r *MultipartRegistry) Names() []string {
	return r.table.names()
}

// HasFormField はフォームに値またはファイルとしてパラメータが存在するか判定する
func HasFormField(form *multipart.Form, field string) bool {
	if form == nil {
		return false
	}
	if values, ok := form.Value[field]; ok && len(values) > 0 {
		return true
	}
	if files, ok := form.File[field]; ok && len(files) > 0 {
		return true
	}
	return false
}

func hasFormFile(form *multipart.Form, field string) bool {
	return form != nil && len(form.File[field]) > 0
}

// FormValue はフォームの最初の値を返す
func FormValue(form *multipart.Form, field string) (string, bool) {
	if form == nil {
		return "", false
	}
	values, ok := form.Value[field]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
