// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package acquire

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec compresses the physical image.
type Codec struct {
	Name      string
	Extension string
	Writer    func(io.Writer) (io.WriteCloser, error)
	Reader    func(io.Reader) (io.ReadCloser, error)
}

var codecs = []Codec{
	{
		Name:      "gzip",
		Extension: ".gz",
		Writer: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.BestSpeed)
		},
		Reader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	},
	{
		Name:      "zstd",
		Extension: ".zst",
		Writer: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		},
		Reader: func(r io.Reader) (io.ReadCloser, error) {
			decoder, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return decoder.IOReadCloser(), nil
		},
	},
	{
		Name:      "lz4",
		Extension: ".lz4",
		Writer: func(w io.Writer) (io.WriteCloser, error) {
			return lz4.NewWriter(w), nil
		},
		Reader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
	},
}

// CodecByName returns the codec called name.
func CodecByName(name string) (Codec, error) {
	for _, codec := range codecs {
		if codec.Name == name {
			return codec, nil
		}
	}
	return Codec{}, fmt.Errorf("unknown compression %q", name)
}

// CodecForFile returns the codec whose extension ends path.
func CodecForFile(path string) (Codec, bool) {
	index := slices.IndexFunc(codecs, func(codec Codec) bool {
		return strings.HasSuffix(path, codec.Extension)
	})
	if index < 0 {
		return Codec{}, false
	}
	return codecs[index], true
}
