// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/geoviz"
)

// ErrNoTile is returned by fetchers for a tile with no data. The
// provider treats it as an empty tile, not a failure.
var ErrNoTile = errors.New("tile: no data")

// Fetcher retrieves one tile's raw bytes, typically over the network.
// Fetch may run concurrently for different keys; the provider
// guarantees at most one in-flight Fetch per key.
type Fetcher interface {
	Fetch(ctx context.Context, key Key) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key Key) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, key Key) ([]byte, error) { return f(ctx, key) }

// Decoder turns raw tile bytes into a dataframe with geometry and
// property columns in tile-local [-1,1] coordinates. The wire format
// is the decoder's business.
type Decoder interface {
	Decode(data []byte) (*geoviz.Dataframe, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(data []byte) (*geoviz.Dataframe, error)

// Decode calls f.
func (f DecoderFunc) Decode(data []byte) (*geoviz.Dataframe, error) { return f(data) }

// inflight is one fetch in progress. Late callers for the same key
// wait on done and share the result.
type inflight struct {
	done chan struct{}
	df   *geoviz.Dataframe
	err  error
}

// Provider builds dataframes from tiles, collapsing concurrent
// requests for the same key into a single fetch. Placement is set on
// the dataframe before it is returned, so callers hand it straight to
// the renderer.
//
// Provider does not cache: pair it with a Cache so evicted tiles are
// refetched on demand.
type Provider struct {
	fetcher Fetcher
	decoder Decoder

	mu     sync.Mutex
	flight map[Key]*inflight
}

// NewProvider returns a provider over a fetcher/decoder pair.
func NewProvider(f Fetcher, d Decoder) (*Provider, error) {
	if f == nil || d == nil {
		return nil, errors.New("tile: provider needs a fetcher and a decoder")
	}
	return &Provider{
		fetcher: f,
		decoder: d,
		flight:  make(map[Key]*inflight),
	}, nil
}

// Get fetches and decodes one tile. Concurrent calls for the same key
// share one fetch and one decode; every caller gets the same
// dataframe. A fetch returning ErrNoTile yields (nil, nil): the tile
// is simply absent.
func (p *Provider) Get(ctx context.Context, key Key) (*geoviz.Dataframe, error) {
	p.mu.Lock()
	if fl, ok := p.flight[key]; ok {
		p.mu.Unlock()
		select {
		case <-fl.done:
			return fl.df, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	p.flight[key] = fl
	p.mu.Unlock()

	fl.df, fl.err = p.load(ctx, key)
	close(fl.done)

	p.mu.Lock()
	delete(p.flight, key)
	p.mu.Unlock()
	return fl.df, fl.err
}

func (p *Provider) load(ctx context.Context, key Key) (*geoviz.Dataframe, error) {
	data, err := p.fetcher.Fetch(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoTile) {
			return nil, nil
		}
		return nil, fmt.Errorf("tile: fetch %d/%d/%d: %w", key.Z, key.X, key.Y, err)
	}
	df, err := p.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("tile: decode %d/%d/%d: %w", key.Z, key.X, key.Y, err)
	}
	if df != nil {
		df.SetPlacement(Placement(key))
	}
	return df, nil
}

// InFlight reports how many fetches are currently running.
func (p *Provider) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.flight)
}
