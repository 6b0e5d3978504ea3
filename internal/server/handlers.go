package server

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hikyaku/internal/action"
	"hikyaku/internal/apperror"
	"hikyaku/internal/idempotence"
)

const contentTypeJSON = "application/json; charset=utf-8"

// dispatch はすべてのリクエストの入口
// 処理中のエラーと panic は失敗エンベロープに変換する
func (s *Server) dispatch(c *gin.Context) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.writeError(c, apperror.Recovered(v, debug.Stack()))
		}
	}()

	if err := s.route(c); err != nil {
		s.writeError(c, err)
	}
}

// route はメソッドで処理を振り分ける
func (s *Server) route(c *gin.Context) error {
	if isWebSocketUpgrade(c.Request) {
		return s.handleWebSocket(c)
	}

	switch c.Request.Method {
	case http.MethodGet:
		return s.handleGet(c)
	case http.MethodPost:
		s.applyCORS(c)
		return s.handlePost(c)
	case http.MethodOptions:
		s.applyCORS(c)
		s.applyPreflight(c)
		c.Status(http.StatusOK)
		return nil
	default:
		c.Status(http.StatusMethodNotAllowed)
		return nil
	}
}

// writeError は失敗エンベロープを書き込む
// 既にレスポンスが書き込まれている場合はログだけ残す
func (s *Server) writeError(c *gin.Context, err error) {
	appErr := apperror.From(err)

	if appErr.Kind == apperror.KindUnexpected {
		s.logger.Error("リクエストの処理中に想定外のエラーが発生しました",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	} else {
		s.logger.Debug("リクエストを拒否しました",
			"path", c.Request.URL.Path, "code", int(appErr.Kind), "error", err)
	}

	if c.Writer.Written() {
		return
	}

	body, mErr := appErr.Marshal()
	if mErr != nil {
		s.logger.Error("エラーレスポンスのエンコードに失敗しました", "error", mErr)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, contentTypeJSON, body)
}

// applyCORS は許可オリジンが設定されていればCORSヘッダーを付ける
func (s *Server) applyCORS(c *gin.Context) {
	origin := s.config.CORS.AllowOrigin
	if origin == "" {
		return
	}
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Access-Control-Allow-Credentials", strconv.FormatBool(s.config.CORS.AllowCredentials))
}

// applyPreflight はプリフライトで冪等キーのヘッダーを許可する
func (s *Server) applyPreflight(c *gin.Context) {
	if s.config.CORS.AllowOrigin == "" {
		return
	}
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, "+s.config.Idempotence.Header)
}

// handlePost はPOSTリクエストを処理する
func (s *Server) handlePost(c *gin.Context) error {
	if !verify(c, s.hooks.PostVerifiers, s.hooks.OnPostVerificationFailed) {
		return nil
	}
	if s.hooks.CustomPost != nil {
		s.hooks.CustomPost(c)
		return nil
	}

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		return s.handleMultipart(c)
	}
	return s.handleAction(c)
}

// handleMultipart は multipart/form-data のアクションを実行する
// ハンドラの失敗はログに残すだけで、JSON レスポンスは書かない
func (s *Server) handleMultipart(c *gin.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return apperror.WrongJSON(err)
	}

	name, ok := action.FormValue(form, action.FieldAction)
	if !ok {
		return apperror.FieldNotFound(action.FieldAction)
	}
	entry, err := s.multipart.Resolve(name)
	if err != nil {
		return err
	}
	if err := entry.Validate(form); err != nil {
		return err
	}

	if err := entry.Handler(c, form); err != nil {
		s.logger.Error("multipart アクションの処理に失敗しました", "action", name, "error", err)
	}
	return nil
}

// handleAction はJSONアクションを実行する
//
// 順序: 解決 → 冪等キャッシュの確認 → 検証 → 実行 → 保存
func (s *Server) handleAction(c *gin.Context) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return fmt.Errorf("リクエストボディの読み込みに失敗: %w", err)
	}

	payload, err := action.DecodePayload(body)
	if err != nil {
		return err
	}
	name, err := payload.Name()
	if err != nil {
		return err
	}
	entry, err := s.actions.Resolve(name)
	if err != nil {
		return err
	}

	id, hasID := idempotence.ParseID(c.GetHeader(s.config.Idempotence.Header))
	if hasID {
		if cached, ok := s.idempotence.Check(id); ok {
			s.logger.Debug("冪等キャッシュの応答を返します", "action", name, "id", id)
			c.Data(http.StatusOK, contentTypeJSON, cached)
			return nil
		}
	} else if entry.Descriptor.RequiresIdempotence {
		return apperror.NeedIdempotence()
	}

	if err := entry.Validate(payload); err != nil {
		return err
	}

	result, err := entry.Handler(c, payload)
	if err != nil {
		return err
	}
	if c.Writer.Written() {
		return nil
	}

	resp, err := action.EncodeSuccess(result)
	if err != nil {
		return fmt.Errorf("レスポンスのエンコードに失敗: %w", err)
	}
	if hasID {
		s.idempotence.Store(id, resp)
	}

	c.Data(http.StatusOK, contentTypeJSON, resp)
	return nil
}

// isWebSocketUpgrade は WebSocket へのアップグレード要求かどうかを判定する
func isWebSocketUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, value := range r.Header.Values("Connection") {
		for _, token := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}
