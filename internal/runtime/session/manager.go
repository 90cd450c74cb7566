// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionManager 管理 Session 生命周期
type SessionManager interface {
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	Append(ctx context.Context, id, user, assistant string) error
	History(ctx context.Context, id string) ([]*Message, error)
	Clear(ctx context.Context, id string) error
}

// Manager 基于 SessionStore 的实现；同一会话的写入串行，不同会话互不阻塞
type Manager struct {
	store SessionStore
	locks *keyedMutex
}

// NewManager 创建 SessionManager
func NewManager(store SessionStore) *Manager {
	if store == nil {
		store = NewMemoryStore(0, 0)
	}
	return &Manager{store: store, locks: newKeyedMutex()}
}

// Store 返回底层存储
func (m *Manager) Store() SessionStore {
	return m.store
}

// GetOrCreate 若 id 为空则生成新 ID；未找到时以该 id 创建空会话
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = NewID()
	}
	unlock := m.locks.lock(id)
	defer unlock()
	return m.getOrCreateLocked(ctx, id)
}

func (m *Manager) getOrCreateLocked(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if s != nil {
		return s, nil
	}
	s = New(id)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("save session %s: %w", id, err)
	}
	return s, nil
}

// Append 写入一轮完整对话；请求已取消时不写入
func (m *Manager) Append(ctx context.Context, id, user, assistant string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := m.locks.lock(id)
	defer unlock()

	if ta, ok := m.store.(TurnAppender); ok {
		if err := ta.AppendTurn(ctx, id, user, assistant); err != nil {
			return fmt.Errorf("append session %s: %w", id, err)
		}
		return nil
	}

	s, err := m.getOrCreateLocked(ctx, id)
	if err != nil {
		return err
	}
	s.AddTurn(user, assistant, time.Time{})
	if err := m.store.Put(ctx, s); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

// History 返回会话历史副本；不存在的会话返回空
func (m *Manager) History(ctx context.Context, id string) ([]*Message, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if s == nil {
		return nil, nil
	}
	return s.CopyMessages(), nil
}

// Clear 删除会话
func (m *Manager) Clear(ctx context.Context, id string) error {
	unlock := m.locks.lock(id)
	defer unlock()
	return m.store.Delete(ctx, id)
}

// Close 关闭底层存储
func (m *Manager) Close(ctx context.Context) error {
	return m.store.Close(ctx)
}

// keyedMutex 按 key 分配互斥锁，无人持有时回收
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
