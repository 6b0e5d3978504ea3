package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"hikyaku/internal/filecache"
)

// indexFile は末尾が "/" のパスに補うファイル名
const indexFile = "index.html"

// handleGet はGETリクエストを処理する
func (s *Server) handleGet(c *gin.Context) error {
	reqPath := c.Request.URL.Path

	if target, ok := s.matchRedirect(reqPath); ok {
		c.Redirect(http.StatusFound, target)
		return nil
	}
	if !verify(c, s.hooks.GetVerifiers, s.hooks.OnGetVerificationFailed) {
		return nil
	}
	if s.hooks.CustomGet != nil {
		s.hooks.CustomGet(c)
		return nil
	}

	// ".." を含むパスは解決先の有無によらず拒否する
	if strings.Contains(reqPath, "..") {
		c.Status(http.StatusForbidden)
		return nil
	}
	if strings.HasSuffix(reqPath, "/") {
		reqPath += indexFile
	}

	fullPath := filepath.Join(s.storageRoot, filepath.FromSlash(reqPath))
	info, err := os.Stat(fullPath)
	if err == nil && info.IsDir() {
		target := c.Request.URL.EscapedPath()
		if strings.HasSuffix(target, "/") {
			target += indexFile
		}
		target += "/"
		if query := c.Request.URL.RawQuery; query != "" {
			target += "?" + query
		}
		c.Redirect(http.StatusFound, target)
		return nil
	}

	if err != nil && s.config.Static.WaterfallingIndex {
		if found, ok := s.waterfall(fullPath); ok {
			fullPath, err = found, nil
		}
	}
	if err != nil {
		c.Status(http.StatusNotFound)
		return nil
	}

	return s.serveFile(c, fullPath)
}

// matchRedirect は最初に一致したリダイレクト規則の転送先を返す
func (s *Server) matchRedirect(reqPath string) (string, bool) {
	for _, rule := range s.redirects {
		if rule.pattern.MatchString(reqPath) {
			return rule.pattern.ReplaceAllString(reqPath, rule.target), true
		}
	}
	return "", false
}

// waterfall は親ディレクトリを遡りながら同名のファイルを探す
// ストレージのルートで探索を打ち切る
func (s *Server) waterfall(fullPath string) (string, bool) {
	name := filepath.Base(fullPath)
	dir := filepath.Dir(fullPath)

	for dir != s.storageRoot && strings.HasPrefix(dir, s.storageRoot) {
		dir = filepath.Dir(dir)
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// serveFile はファイルを配信する
// キャッシュが有効な場合は ETag を付け、If-None-Match が一致すれば 304 を返す
func (s *Server) serveFile(c *gin.Context, fullPath string) error {
	contentType := filecache.ContentType(fullPath, s.config.Static.SniffContentType)

	if !s.config.Static.DisableCaching {
		hash, err := s.files.GetOrCompute(fullPath)
		if err != nil {
			return s.fileError(c, err)
		}
		c.Header("ETag", `"`+hash+`"`)
		if etagMatches(c.GetHeader("If-None-Match"), hash) {
			c.Status(http.StatusNotModified)
			return nil
		}
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return s.fileError(c, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return s.fileError(c, err)
	}

	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, nil)
	return nil
}

// fileError は存在しないファイルを 404 に、それ以外をエラーとして扱う
func (s *Server) fileError(c *gin.Context, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		c.Status(http.StatusNotFound)
		return nil
	}
	return err
}

// etagMatches は If-None-Match の値にハッシュが含まれるか判定する
// 引用符の有無と弱い比較の接頭辞 W/ は区別しない
func etagMatches(header, hash string) bool {
	if header == "" {
		return false
	}
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		tag = strings.TrimPrefix(tag, "W/")
		tag = strings.Trim(tag, `"`)
		if tag == hash || tag == "*" {
			return true
		}
	}
	return false
}
