// Package store persists the source tree and the live-channel list.
//
// Both snapshots are JSON documents rewritten atomically on every save. A
// flock on the data directory keeps two cycles from interleaving writes.
package store

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"livemon/internal/catalog"
	"livemon/internal/config"
	"livemon/internal/fileutil"
	"livemon/internal/services"
)

const componentName = "store"

// ErrLocked reports that another process holds the data directory lock.
var ErrLocked = errors.New("another livemon cycle is already running")

// Gateway loads and saves catalog snapshots.
type Gateway struct {
	treePath string
	livePath string
	codec    *catalog.Codec
	lock     *flock.Flock
}

// New returns a Gateway for the paths in cfg.
func New(cfg *config.Config, codec *catalog.Codec) *Gateway {
	return &Gateway{
		treePath: cfg.TreePath(),
		livePath: cfg.LivePath(),
		codec:    codec,
		lock:     flock.New(cfg.LockPath()),
	}
}

// TreePath returns the source tree location.
func (g *Gateway) TreePath() string { return g.treePath }

// LivePath returns the live-channel list location.
func (g *Gateway) LivePath() string { return g.livePath }

// Lock acquires the data directory lock without blocking.
func (g *Gateway) Lock() error {
	ok, err := g.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock releases the data directory lock.
func (g *Gateway) Unlock() error {
	return g.lock.Unlock()
}

// LoadTree reads the persisted source tree. A missing file yields an empty tree.
func (g *Gateway) LoadTree() ([]*catalog.Source, error) {
	data, ok, err := fileutil.ReadFileIfExists(g.treePath)
	if err != nil {
		return nil, fmt.Errorf("read source tree: %w", err)
	}
	if !ok {
		return nil, nil
	}
	tree, err := g.codec.DecodeTree(data)
	if err != nil {
		return nil, services.Wrap(services.ErrParse, componentName, "load tree", g.treePath, err)
	}
	return tree, nil
}

// SaveTree overwrites the persisted source tree.
func (g *Gateway) SaveTree(tree []*catalog.Source) error {
	data, err := g.codec.EncodeTree(tree)
	if err != nil {
		return fmt.Errorf("encode source tree: %w", err)
	}
	if err := fileutil.WriteFileAtomic(g.treePath, data, 0o644); err != nil {
		return fmt.Errorf("save source tree: %w", err)
	}
	return nil
}

// LoadLive reads the last written live-channel list. A missing file yields
// an empty list.
func (g *Gateway) LoadLive() ([]*catalog.Channel, error) {
	data, ok, err := fileutil.ReadFileIfExists(g.livePath)
	if err != nil {
		return nil, fmt.Errorf("read live list: %w", err)
	}
	if !ok {
		return nil, nil
	}
	channels, err := g.codec.DecodeChannels(data)
	if err != nil {
		return nil, services.Wrap(services.ErrParse, componentName, "load live", g.livePath, err)
	}
	return channels, nil
}

// SaveLive overwrites the live-channel list.
func (g *Gateway) SaveLive(channels []*catalog.Channel) error {
	data, err := g.codec.EncodeChannels(channels)
	if err != nil {
		return fmt.Errorf("encode live list: %w", err)
	}
	if err := fileutil.WriteFileAtomic(g.livePath, data, 0o644); err != nil {
		return fmt.Errorf("save live list: %w", err)
	}
	return nil
}
