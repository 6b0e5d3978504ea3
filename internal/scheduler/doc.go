// Package scheduler はプロセス内で定期的に実行されるバックグラウンドタスクを管理します。
//
// # 責務
//   - タスクごとの初回待機と実行間隔の管理
//   - タスクごとに独立したキャンセル
//   - タスク内の失敗のログ出力と継続
//
// # 仕様
//   - 待機は小さな刻みでポーリングし、キャンセルをすぐに検出する
//   - 処理が「停止」を返したタスクは二度と実行しない
//   - 失敗（error または panic）はログに記録し、残りの間隔を待って次の実行へ進む
//   - キャンセルは協調的で、実行中の処理は最後まで完了する
package scheduler
