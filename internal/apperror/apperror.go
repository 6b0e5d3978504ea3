package apperror

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/goccy/go-json"
)

// Kind はエラー分類のコード
type Kind int

const (
	KindWrongJSON       Kind = 1 // ボディが正しいJSONではない
	KindFieldNotFound   Kind = 2 // 必須フィールドが欠けている
	KindInvalidValue    Kind = 3 // フィールドの値の種類が違う
	KindActionNotFound  Kind = 4 // アクションが登録されていない
	KindUnexpected      Kind = 5 // 想定外の内部エラー
	KindNeedIdempotence Kind = 6 // 冪等キーが必要
)

// Error はクライアントへそのまま返せる構造化エラー
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any

	cause error
}

// Error は error インターフェースの実装
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (code=%d): %v", e.Message, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s (code=%d)", e.Message, e.Kind)
}

// Unwrap は元のエラーを返す
func (e *Error) Unwrap() error {
	return e.cause
}

// Fields は details.fields に格納されたフィールド名を返す
func (e *Error) Fields() []string {
	if e.Details == nil {
		return nil
	}
	fields, _ := e.Details["fields"].([]string)
	return fields
}

// WrongJSON はコード1のエラーを作成する
func WrongJSON(cause error) *Error {
	return &Error{Kind: KindWrongJSON, Message: "Wrong JSON", cause: cause}
}

// FieldNotFound はコード2のエラーを作成する
func FieldNotFound(fields ...string) *Error {
	return &Error{
		Kind:    KindFieldNotFound,
		Message: "Field not found.",
		Details: map[string]any{"fields": fields},
	}
}

// InvalidValue はコード3のエラーを作成する
func InvalidValue(fields ...string) *Error {
	return &Error{
		Kind:    KindInvalidValue,
		Message: "Invalid value.",
		Details: map[string]any{"fields": fields},
	}
}

// ActionNotFound はコード4のエラーを作成する
func ActionNotFound(name string) *Error {
	return &Error{
		Kind:    KindActionNotFound,
		Message: "Action not found.",
		cause:   fmt.Errorf("action %q is not registered", name),
	}
}

// Unexpected は分類外のエラーをコード5として包む
func Unexpected(err error) *Error {
	return &Error{
		Kind:    KindUnexpected,
		Message: "Unexpected exception was occurred",
		Details: map[string]any{
			"message": err.Error(),
			"trace":   string(debug.Stack()),
			"type":    fmt.Sprintf("%T", err),
		},
		cause: err,
	}
}

// Recovered は recover() で得た値をコード5として包む
func Recovered(v any, stack []byte) *Error {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", v)
	}
	return &Error{
		Kind:    KindUnexpected,
		Message: "Unexpected exception was occurred",
		Details: map[string]any{
			"message": err.Error(),
			"trace":   string(stack),
			"type":    fmt.Sprintf("%T", v),
		},
		cause: err,
	}
}

// NeedIdempotence はコード6のエラーを作成する
func NeedIdempotence() *Error {
	return &Error{Kind: KindNeedIdempotence, Message: "This action needs idempotence"}
}

// From は任意のエラーを分類済みエラーへ正規化する
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	// JSON の構文エラーは汎用エラーでもコード1として扱う
	var syntaxErr *json.SyntaxError
	var stdSyntaxErr *stdjson.SyntaxError
	if errors.As(err, &syntaxErr) || errors.As(err, &stdSyntaxErr) {
		return WrongJSON(err)
	}

	return Unexpected(err)
}

// Body はエンベロープの error 部分
type Body struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// Envelope は失敗レスポンスのワイヤ形式
type Envelope struct {
	Status bool `json:"status"`
	Error  Body `json:"error"`
}

// Envelope はエラーをワイヤ形式に変換する
func (e *Error) Envelope() Envelope {
	return Envelope{
		Status: false,
		Error: Body{
			Code:    int(e.Kind),
			Message: e.Message,
			Details: e.Details,
		},
	}
}

// Marshal はエンベロープをJSONへエンコードする
func (e *Error) Marshal() ([]byte, error) {
	return json.Marshal(e.Envelope())
}
