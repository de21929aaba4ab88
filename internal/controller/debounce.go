package controller

import (
	"sync"
	"time"
)

// DefaultDebounce 关键词输入的静默窗口
const DefaultDebounce = 300 * time.Millisecond

// Debouncer 尾沿触发：每次调用都会取消尚未触发的上一次，只有存活下来的定时器才会执行
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	duration time.Duration
}

func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = DefaultDebounce
	}
	return &Debouncer{duration: duration}
}

// Debounce 在 duration 内没有新调用时执行 fn
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	// Stop 无法拦住已经触发的定时器，用代数再确认一次
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		live := gen == d.gen
		if live {
			d.timer = nil
		}
		d.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Cancel 取消尚未触发的调用
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending 是否有等待触发的调用
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
