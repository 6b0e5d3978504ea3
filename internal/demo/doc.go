// Package demo は組み込み先が登録するアクションとタスクの見本です。
//
// # 責務
//   - JSON アクション（echo / sum / increment）の登録
//   - multipart アクション（upload）の登録
//   - WebSocket へ定期的に送るハートビートタスク
//
// increment は冪等キーを必須とし、同じキーの再送で二重に加算しない。
package demo
