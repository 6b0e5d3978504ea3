package demo

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"hikyaku/internal/action"
	"hikyaku/internal/apperror"
)

// Counter は increment アクションが加算する値
type Counter struct {
	value atomic.Int64
}

// Value は現在の値を返す
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// RegisterActions はサンプルのJSONアクションを登録する
func RegisterActions(r *action.Registry, counter *Counter) error {
	entries := []struct {
		desc    action.Descriptor
		handler action.HandlerFunc
	}{
		{
			desc: action.Descriptor{
				Name:   "echo",
				Fields: []string{"message"},
				Kinds:  []action.Kind{action.KindString},
			},
			handler: echo,
		},
		{
			desc: action.Descriptor{
				Name:   "sum",
				Fields: []string{"a", "b"},
				Kinds:  []action.Kind{action.KindNumber, action.KindNumber},
			},
			handler: sum,
		},
		{
			desc: action.Descriptor{
				Name:                "increment",
				Fields:              []string{"by"},
				Kinds:               []action.Kind{action.KindNumber},
				RequiresIdempotence: true,
			},
			handler: counter.increment,
		},
	}

	for _, e := range entries {
		if err := r.Register(e.desc, e.handler); err != nil {
			return fmt.Errorf("アクション %s の登録に失敗: %w", e.desc.Name, err)
		}
	}
	return nil
}

func echo(c *gin.Context, p action.Payload) (action.Result, error) {
	message, _ := p.String("message")
	return action.Result{"message": message}, nil
}

func sum(c *gin.Context, p action.Payload) (action.Result, error) {
	a, _ := p.Float("a")
	b, _ := p.Float("b")
	return action.Result{"sum": a + b}, nil
}

// increment は by を整数として加算する
func (c *Counter) increment(_ *gin.Context, p action.Payload) (action.Result, error) {
	by, _ := p.Float("by")
	if by != math.Trunc(by) {
		return nil, apperror.InvalidValue("by")
	}
	return action.Result{"value": c.value.Add(int64(by))}, nil
}
