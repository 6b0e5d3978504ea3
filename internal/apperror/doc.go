// Package apperror はクライアントへ返す構造化エラーを定義します。
//
// # 責務
//   - 番号付きの閉じたエラー分類（1〜6）の定義
//   - 任意の error を分類済みエラーへ正規化する
//   - HTTP 境界で JSON エンベロープへ変換する
//
// # 仕様
//   - 分類外のエラーはすべて Unexpected（コード5）として包む
//   - JSON 構文エラーは WrongJSON（コード1）へ正規化する
//   - エンベロープ: {"status": false, "error": {"code", "message", "details"}}
package apperror
