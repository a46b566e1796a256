// Package video decodes the drone's H.264 stream into raw frames and keeps
// the most recent one available for non-blocking reads.
package video

import (
	"image"
	"sync"
)

// FrameBuffer holds the latest decoded frame.
type FrameBuffer struct {
	mu    sync.RWMutex
	frame *image.RGBA
	seq   uint64
	err   error
}

// Store replaces the latest frame.
func (b *FrameBuffer) Store(img *image.RGBA) {
	b.mu.Lock()
	b.frame = img
	b.seq++
	b.mu.Unlock()
}

// Fail records a terminal error; subsequent Frame calls return it.
func (b *FrameBuffer) Fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
}

// Frame returns the latest frame, (nil, nil) if none has arrived yet, or
// the error recorded by Fail. Frames are never mutated after Store, so the
// returned image may be shared.
func (b *FrameBuffer) Frame() (image.Image, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	if b.frame == nil {
		return nil, nil
	}
	return b.frame, nil
}

// Seq returns how many frames have been stored.
func (b *FrameBuffer) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}
