package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/jukebox/internal/song"
)

// zstdMagic is the frame header every zstd stream starts with.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// chunkSize is the minimum number of records one encoding goroutine handles.
const chunkSize = 256

// Encode renders songs as a JSON array in the given order.
// Records are marshalled in parallel chunks and stitched together afterwards.
func Encode(ctx context.Context, songs []song.Song) ([]byte, error) {
	workers := runtime.GOMAXPROCS(0)
	size := (len(songs) + workers - 1) / workers
	if size < chunkSize {
		size = chunkSize
	}

	parts := make([][]byte, (len(songs)+size-1)/size)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for idx := range parts {
		start := idx * size
		end := min(start+size, len(songs))
		g.Go(func() error {
			var buf bytes.Buffer
			for i, rec := range songs[start:end] {
				if i%chunkSize == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if i > 0 {
					buf.WriteByte(',')
				}
				b, err := json.Marshal(rec)
				if err != nil {
					return fmt.Errorf("encoding song %d: %w", rec.ID, err)
				}
				buf.Write(b)
			}
			parts[idx] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteByte('[')
	for i, p := range parts {
		if i > 0 {
			out.WriteByte(',')
		}
		out.Write(p)
	}
	out.WriteByte(']')
	return out.Bytes(), nil
}

// Decode parses a snapshot produced by Encode, compressed or not.
func Decode(data []byte) ([]song.Song, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		raw, err := decompress(data)
		if err != nil {
			return nil, err
		}
		data = raw
	}

	var songs []song.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, err
	}
	return songs, nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, err
	}
	defer zstdDecoderPool.Put(dec)
	return dec.DecodeAll(data, nil)
}
