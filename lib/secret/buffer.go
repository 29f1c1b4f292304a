// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive bytes in memory that is locked against swap,
// excluded from core dumps, and zeroed on close. The backing memory is
// allocated via mmap outside the Go heap, so the garbage collector never
// sees it and cannot copy or relocate it. That is the only way to be
// sure an archive passphrase does not outlive the run in some stale
// heap page.
//
// A Buffer must not be copied after creation. Use Close to release the
// memory when the secret is no longer needed. After Close, any access
// to the buffer's contents panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a zero-filled protected buffer of size bytes. The
// buffer is backed by an anonymous mmap region that is:
//   - Locked into physical RAM (mlock), preventing swap
//   - Excluded from core dumps (MADV_DONTDUMP)
//   - Outside the Go heap, invisible to the garbage collector
//
// The caller must call Close when the secret is no longer needed.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	// Allocate anonymous memory outside the Go heap.
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	// Lock the memory so it is never swapped to disk.
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	// Exclude from core dumps. A kernel without MADV_DONTDUMP fails
	// the allocation rather than silently weakening the guarantee.
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{data: data, length: size}, nil
}

// NewFromBytes copies source into a protected buffer and zeroes source
// in place.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		Zero(source)
		return nil, err
	}
	copy(buffer.data, source)
	Zero(source)
	return buffer, nil
}

// NewRandom allocates a protected buffer of size bytes and fills it
// directly from crypto/rand. The random bytes never touch the heap.
func NewRandom(size int) (*Buffer, error) {
	buffer, err := New(size)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, buffer.data); err != nil {
		buffer.Close()
		return nil, fmt.Errorf("secret: reading random bytes: %w", err)
	}
	return buffer, nil
}

// EncodeBase64 returns a new protected buffer holding the standard
// base64 encoding of b. The receiver is borrowed and not closed.
func (b *Buffer) EncodeBase64() (*Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}

	encoded, err := New(base64.StdEncoding.EncodedLen(b.length))
	if err != nil {
		return nil, err
	}
	base64.StdEncoding.Encode(encoded.data, b.data[:b.length])
	return encoded, nil
}

// Bytes returns the secret data. The slice points directly into the
// mmap region, so do not hold references to it beyond the lifetime of
// the Buffer, and do not append to it: that would copy the secret onto
// the heap. Panics if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data[:b.length]
}

// Reveal returns the secret as a string. The string is backed by a
// heap-allocated copy (Go strings are immutable and live on the heap),
// which Close cannot zero. Use it only at API boundaries that insist on
// a string, such as age's scrypt recipient; prefer Bytes or WriteTo.
//
// Panics if the buffer has been closed.
func (b *Buffer) Reveal() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return string(b.data[:b.length])
}

// String redacts the buffer so that formatting it with fmt, or passing
// it to slog as an attribute, never prints the secret. Reveal is the
// explicit way out.
func (b *Buffer) String() string {
	return "[REDACTED]"
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// WriteTo implements io.WriterTo, writing the secret to w without an
// intermediate heap copy. The key file is written this way.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	written, err := w.Write(b.data[:b.length])
	return int64(written), err
}

// Close zeros the contents, then unlocks and unmaps the memory. After
// Close, any access to the buffer's contents panics. Close is
// idempotent.
//
// Munlock and munmap errors are returned but leave nothing exposed:
// the contents are already zero, and the kernel reclaims the mapping
// when the process exits regardless.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)

	var firstError error
	if err := unix.Munlock(b.data); err != nil {
		firstError = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap failed: %w", err)
	}
	b.data = nil
	return firstError
}

// Zero overwrites data with zeros. Used for heap slices that briefly
// held secret material.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
