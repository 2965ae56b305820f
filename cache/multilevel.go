// File: cache/multilevel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cache

import "time"

// MultiLevel cascades ordered levels L1 < L2 < L3. get
// searches ascending; on hit at level L it promotes the value into
// every level strictly above L. set writes all levels; remove removes
// from all. Cross-level promotion races are acceptable: a
// reader at level N may momentarily miss an entry a concurrent reader
// is promoting into level N-1, since both converge to the same value.
type MultiLevel struct {
	levels []*Engine
}

func NewMultiLevel(levels ...*Engine) *MultiLevel {
	return &MultiLevel{levels: levels}
}

func (m *MultiLevel) Get(key string) ([]byte, bool) {
	for i, level := range m.levels {
		if data, ok := level.Get(key); ok {
			for j := 0; j < i; j++ {
				m.levels[j].Set(key, data, nil, nil)
			}
			return data, true
		}
	}
	return nil, false
}

func (m *MultiLevel) Set(key string, data []byte, expiresAt *time.Time, metadata map[string]string) {
	for _, level := range m.levels {
		level.Set(key, data, expiresAt, metadata)
	}
}

func (m *MultiLevel) Remove(key string) {
	for _, level := range m.levels {
		level.Remove(key)
	}
}
