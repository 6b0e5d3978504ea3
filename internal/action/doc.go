// Package action はアクション名からハンドラへの対応表を管理します。
//
// # 責務
//   - 起動時の明示的なアクション登録（重複名は起動時エラー）
//   - 名前によるハンドラ解決
//   - ペイロードの構造的な検証（必須フィールドと値の種類）
//   - multipart/form-data 用アクションの別表管理
//
// # 仕様
//   - 登録済みの記述子は不変
//   - 欠けているフィールドはすべてまとめて FieldNotFound で報告する
//   - 種類の不一致はすべてまとめて InvalidValue で報告する
//   - 種類リストを省略した記述子は種類の検査を行わない
package action
