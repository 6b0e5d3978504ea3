package action

import (
	"bytes"

	"github.com/goccy/go-json"

	"hikyaku/internal/apperror"
)

// FieldAction はアクション名を運ぶフィールド
const FieldAction = "action"

// Payload はリクエストボディのJSONオブジェクト
type Payload map[string]any

// Result はハンドラが返す成功レスポンスのフィールド
type Result map[string]any

// DecodePayload はボディを1つのJSONオブジェクトとして解析する
// 数値は json.Number のまま保持する
func DecodePayload(body []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperror.WrongJSON(err)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperror.WrongJSON(nil)
	}
	return Payload(obj), nil
}

// Name はペイロードのアクション名を取り出す
func (p Payload) Name() (string, error) {
	v, ok := p[FieldAction]
	if !ok {
		return "", apperror.FieldNotFound(FieldAction)
	}
	name, ok := v.(string)
	if !ok {
		return "", apperror.InvalidValue(FieldAction)
	}
	return name, nil
}

// String は文字列フィールドを取得する
func (p Payload) String(field string) (string, bool) {
	s, ok := p[field].(string)
	return s, ok
}

// Float は数値フィールドを float64 で取得する
func (p Payload) Float(field string) (float64, bool) {
	switch n := p[field].(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Bool は真偽値フィールドを取得する
func (p Payload) Bool(field string) (bool, bool) {
	b, ok := p[field].(bool)
	return b, ok
}

// EncodeSuccess は成功エンベロープ {"status": true, ...fields} をエンコードする
func EncodeSuccess(result Result) ([]byte, error) {
	envelope := make(map[string]any, len(result)+1)
	for k, v := range result {
		envelope[k] = v
	}
	envelope["status"] = true
	return json.Marshal(envelope)
}
