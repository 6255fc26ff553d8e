package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	globalMgr *MiddlewareManager
	once      sync.Once
)

type named struct {
	name string
	h    gin.HandlerFunc
}

// MiddlewareManager 运行期可增删的前置中间件链。
// 注册的 handler 不调用 c.Next，由 Use 统一往下走；Abort 后链路终止。
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []named
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Manager 进程级实例
func Manager() *MiddlewareManager {
	once.Do(func() { globalMgr = NewManager() })
	return globalMgr
}

// Add 同名替换，保持原有顺序
func (m *MiddlewareManager) Add(name string, h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mids {
		if m.mids[i].name == name {
			m.mids[i].h = h
			return
		}
	}
	m.mids = append(m.mids, named{name: name, h: h})
}

func (m *MiddlewareManager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mids {
		if m.mids[i].name == name {
			m.mids = append(m.mids[:i], m.mids[i+1:]...)
			return
		}
	}
}

func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Names 当前链路顺序
func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.mids))
	for i, n := range m.mids {
		out[i] = n.name
	}
	return out
}

// Use 挂到 Engine 上的总入口，每个请求取一次快照
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		snap := append([]named(nil), m.mids...)
		m.mu.RUnlock()

		for _, n := range snap {
			n.h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}
