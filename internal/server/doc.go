// Package server は、HTTPサーバーとWebSocket通信を管理します。
//
// このパッケージは、HTTPサーバーの起動、リクエストの振り分け、
// アクションの実行、WebSocket接続の受け入れ、静的ファイルの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - GET / POST / OPTIONS / WebSocket への固定的な振り分け
//   - JSON アクションと multipart アクションの実行
//   - 冪等キーによる重複リクエストの再生
//   - ETag による条件付きGETを伴う静的ファイルの配信
//   - バックグラウンドタスクの起動と停止
//
// 仕様:
//   - ルーティングは gin の catch-all ルート1つで受け、メソッドで振り分ける
//   - アクションのエラーは HTTP 200 の失敗エンベロープとして返す
//   - WebSocketは coder/websocket を使用
//   - 拡張ポイントは Hooks で提供する（検証、失敗時処理、独自ハンドラ）
package server
