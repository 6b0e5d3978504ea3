// Package logging は log/slog のロガーを設定から組み立てます。
//
// # 仕様
//   - 形式は text または json
//   - レベルは debug / info / warn / error
//   - 各パッケージは component 属性を付けた子ロガーを使う
package logging
