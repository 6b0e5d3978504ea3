// Package filecache は静的ファイルの内容ハッシュを保持し、条件付きGETを支えます。
//
// # 責務
//   - パスごとの内容ハッシュ（MD5の16進表記）の遅延計算と保持
//   - 一定時間（既定30分）を過ぎたエントリの遅延削除
//   - 拡張子からの Content-Type 決定
//
// # 仕様
//   - ヒット時は内容を再確認せず保存済みのハッシュを返す
//   - 古さの上限は時間で決まり、内容の変化では検出しない
//   - ロックはメモリ上の管理だけを保護し、ファイル読み込み中は保持しない
package filecache
