// Package mempool provides size-classed buffer pools for the per-pixel scratch
// slices used by the vision primitives.
package mempool

import "sync"

// sizeClass rounds n up to the next multiple of 1024 with a floor of 1024.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return ((n + step - 1) / step) * step
}

// classPool is a set of sync.Pools keyed by size class.
type classPool[T any] struct {
	pools sync.Map // size class -> *sync.Pool
}

func (cp *classPool[T]) pool(cls int) *sync.Pool {
	if p, ok := cp.pools.Load(cls); ok {
		return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	p, _ := cp.pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// get returns a zeroed slice of length n.
func (cp *classPool[T]) get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, ok := cp.pool(cls).Get().(*[]T)
	if !ok || cap(*bp) < cls {
		return make([]T, n, cls)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

func (cp *classPool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	c := cap(buf)
	if c < 1024 || c%1024 != 0 {
		return
	}
	full := buf[:c]
	cp.pool(c).Put(&full)
}

var (
	float32Pool classPool[float32]
	boolPool    classPool[bool]
	int32Pool   classPool[int32]
)

// GetFloat32 returns a zeroed []float32 of length n. Return it with PutFloat32.
func GetFloat32(n int) []float32 { return float32Pool.get(n) }

// PutFloat32 returns a buffer to the pool. Nil slices are ignored.
func PutFloat32(buf []float32) { float32Pool.put(buf) }

// GetBool returns a zeroed []bool of length n. Return it with PutBool.
func GetBool(n int) []bool { return boolPool.get(n) }

// PutBool returns a buffer to the pool. Nil slices are ignored.
func PutBool(buf []bool) { boolPool.put(buf) }

// GetInt32 returns a zeroed []int32 of length n. Return it with PutInt32.
func GetInt32(n int) []int32 { return int32Pool.get(n) }

// PutInt32 returns a buffer to the pool. Nil slices are ignored.
func PutInt32(buf []int32) { int32Pool.put(buf) }
