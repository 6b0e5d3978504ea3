// Package hub は接続中の WebSocket クライアントを管理し、一斉送信を行います。
//
// # 責務
//   - アップグレード済み接続の登録
//   - 終了状態の接続の削除（一斉送信の直前に確認）
//   - 生存している接続への独立した非ブロッキング送信
//   - シャットダウン時の一括切断
//
// # 仕様
//   - WebSocket は github.com/coder/websocket を使用
//   - 接続集合の変更と走査は1つのロックで排他する
//   - 送信はロックの外で接続ごとのゴルーチンから行い、1つの失敗が他を妨げない
package hub
