// Package idempotence はクライアントの冪等キーごとに成功レスポンスを保持します。
//
// # 責務
//   - リクエストヘッダーからの冪等キー（UUID）の取り出し
//   - 保存済みレスポンスの検索と保存
//   - 期限切れレコードの遅延削除（アクセス時にまとめて掃除）
//
// # 仕様
//   - TTL は保存時刻から5分（設定で変更可能）
//   - キーごとにレコードは最大1件、再保存で期限を延長する
//   - 実行の排他は行わない。完了済みのリクエストだけが Check で見える
package idempotence
