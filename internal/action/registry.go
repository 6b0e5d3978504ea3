package action

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"hikyaku/internal/apperror"
)

// ErrDuplicate は同名のアクションが既に登録されている場合のエラー
var ErrDuplicate = errors.New("action already registered")

// Descriptor はアクションの名前と必須フィールドを記述する
type Descriptor struct {
	Name   string   // アクション名
	Fields []string // 必須フィールド（順序付き）
	Kinds  []Kind   // Fields と並行する値の種類（nil なら検査しない）

	// RequiresIdempotence が true の場合、冪等キーのないリクエストを拒否する
	RequiresIdempotence bool
}

// HandlerFunc はJSONアクションの処理本体
type HandlerFunc func(c *gin.Context, payload Payload) (Result, error)

// Entry は登録済みのアクション
type Entry struct {
	Descriptor Descriptor
	Handler    HandlerFunc
}

// Validate はペイロードを記述子に照らして検証する
func (e *Entry) Validate(payload Payload) error {
	return Validate(e.Descriptor, payload)
}

// table は名前をキーにした登録表
type table[E any] struct {
	mu      sync.RWMutex
	entries map[string]E
}

func (t *table[E]) add(name string, entry E) error {
	if name == "" {
		return errors.New("action name is empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries == nil {
		t.entries = make(map[string]E)
	}
	if _, exists := t.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	t.entries[name] = entry
	return nil
}

func (t *table[E]) get(name string) (E, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[name]
	return entry, ok
}

func (t *table[E]) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry はJSONアクションの登録表
type Registry struct {
	table table[*Entry]
}

// NewRegistry は空の Registry を作成する
func NewRegistry() *Registry {
	return &Registry{}
}

// Register はアクションを登録する
func (r *Registry) Register(desc Descriptor, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("action %s: handler is nil", desc.Name)
	}
	desc.Fields = append([]string(nil), desc.Fields...)
	if desc.Kinds != nil {
		desc.Kinds = append([]Kind(nil), desc.Kinds...)
	}
	return r.table.add(desc.Name, &Entry{Descriptor: desc, Handler: handler})
}

// MustRegister は Register に失敗した場合 panic する
func (r *Registry) MustRegister(desc Descriptor, handler HandlerFunc) {
	if err := r.Register(desc, handler); err != nil {
		panic(err)
	}
}

// Resolve は名前からアクションを解決する
func (r *Registry) Resolve(name string) (*Entry, error) {
	entry, ok := r.table.get(name)
	if !ok {
		return nil, apperror.ActionNotFound(name)
	}
	return entry, nil
}

// Names は登録済みのアクション名を返す
func (r *Registry) Names() []string {
	return r.table.names()
}

// Validate はペイロードを構造的に検証する
func Validate(desc Descriptor, payload Payload) error {
	var missing []string
	for _, field := range desc.Fields {
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return apperror.FieldNotFound(missing...)
	}

	if desc.Kinds == nil {
		return nil
	}

	var mismatched []string
	for i := 0; i < len(desc.Fields) && i < len(desc.Kinds); i++ {
		v, ok := payload[desc.Fields[i]]
		if ok && KindOf(v) != desc.Kinds[i] {
			mismatched = append(mismatched, desc.Fields[i])
		}
	}
	if len(mismatched) > 0 {
		return apperror.InvalidValue(mismatched...)
	}

	return nil
}
