package config

import "sync/atomic"

// Store 持有当前生效的配置快照；读多写少，热加载时整体替换，请求之间不共享可变状态。
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore 使用初始配置创建 Store。
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Current 返回当前快照；调用方只读，不得修改。
func (s *Store) Current() *Config {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// Swap 原子替换快照并返回旧值。
func (s *Store) Swap(cfg *Config) *Config {
	return s.current.Swap(cfg)
}
