package demo

import (
	"fmt"
	"time"

	"hikyaku/internal/server"
)

// Install はサンプルのアクションとタスクをサーバーへ登録する
// heartbeat が 0 以下ならハートビートは登録しない
func Install(srv *server.Server, counter *Counter, heartbeat time.Duration) error {
	if err := RegisterActions(srv.Actions(), counter); err != nil {
		return err
	}
	if err := RegisterMultipartActions(srv.MultipartActions(), srv.StorageRoot()); err != nil {
		return err
	}
	if heartbeat > 0 {
		if _, err := srv.AddTask(HeartbeatTask(srv, nil, heartbeat)); err != nil {
			return fmt.Errorf("ハートビートの登録に失敗: %w", err)
		}
	}
	return nil
}
