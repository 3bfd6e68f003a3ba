package reassembly

import (
	"sync"
	"time"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/models"
)

// Sequence 某个实体正在重组中的片段序列
type Sequence struct {
	Key       models.EntityKey
	Fragments []models.Fragment // 按到达顺序
	StartedAt time.Time
	UpdatedAt time.Time
}

// Buffer 重组缓冲区：entityKey -> 活跃序列
// 存在于 map 中即表示该实体处于 active 状态；完成或重置后移除
type Buffer struct {
	mu        sync.Mutex
	sequences map[models.EntityKey]*Sequence
	now       func() time.Time
}

// NewBuffer 创建重组缓冲区
func NewBuffer() *Buffer {
	return &Buffer{
		sequences: make(map[models.EntityKey]*Sequence),
		now:       time.Now,
	}
}

// BeginOrReset 以 f 开始新序列；若已有活跃序列则丢弃其片段并重新开始
func (b *Buffer) BeginOrReset(f models.Fragment) (restarted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, restarted = b.sequences[f.Key]
	now := b.now()
	b.sequences[f.Key] = &Sequence{
		Key:       f.Key,
		Fragments: []models.Fragment{f},
		StartedAt: now,
		UpdatedAt: now,
	}
	return restarted
}

// Append 追加片段到活跃序列，实体不活跃时返回 false
func (b *Buffer) Append(f models.Fragment) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq, ok := b.sequences[f.Key]
	if !ok {
		return false
	}
	seq.Fragments = append(seq.Fragments, f)
	seq.UpdatedAt = b.now()
	return true
}

// Complete 取出序列的全部片段并清除该实体的状态
func (b *Buffer) Complete(key models.EntityKey) ([]models.Fragment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq, ok := b.sequences[key]
	if !ok {
		return nil, false
	}
	delete(b.sequences, key)
	return seq.Fragments, true
}

// Active 实体当前是否处于序列中
func (b *Buffer) Active(key models.EntityKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.sequences[key]
	return ok
}

// Len 活跃序列数量
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.sequences)
}

// EvictStale 移除空闲时间超过 ttl 的序列，返回被移除的实体
func (b *Buffer) EvictStale(ttl time.Duration) []models.EntityKey {
	if ttl <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-ttl)
	var evicted []models.EntityKey
	for key, seq := range b.sequences {
		if seq.UpdatedAt.Before(cutoff) {
			delete(b.sequences, key)
			evicted = append(evicted, key)
		}
	}
	return evicted
}
