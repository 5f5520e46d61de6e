// Package checker implements the consistency check of a repository. It
// cross-validates three independently maintained views: the local cache
// mirror, the index and the pack files actually stored in the backend, and
// finally walks the snapshot and tree graph to confirm that every reference
// resolves.
//
// The phases run sequentially. Inconsistencies are streamed as typed errors
// and never abort a phase; an I/O or decode failure of the phase itself is
// fatal and ends the run.
package checker

import (
	"bytes"
	"context"
	"path"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/index"
	"github.com/cairn-backup/cairn/internal/repository"
	"github.com/cairn-backup/cairn/internal/ui/progress"
)

// cache comparisons running at the same time
const cacheCheckConcurrency = 5

// Checker runs the consistency check of a repository.
type Checker struct {
	repo  *repository.Repository
	cache cairn.Cache

	masterIndex *index.MasterIndex
	packs       map[cairn.ID]int64
}

// New returns a new checker for the repository. cache may be nil, in which
// case the cache phase is skipped.
func New(repo *repository.Repository, cache cairn.Cache) *Checker {
	return &Checker{
		repo:        repo,
		cache:       cache,
		masterIndex: index.NewMasterIndex(),
		packs:       make(map[cairn.ID]int64),
	}
}

func sendError(ctx context.Context, errChan chan<- error, err error) error {
	select {
	case errChan <- err:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CacheFiles compares every cached file of type t byte-for-byte against the
// copy stored in the backend, with a bounded number of comparisons running
// concurrently. Mismatches are sent to errChan as ErrCacheMismatch. The
// channel is closed when the phase is done.
func (c *Checker) CacheFiles(ctx context.Context, t cairn.FileType, errChan chan<- error) {
	defer close(errChan)

	if c.cache == nil {
		debug.Log("no cache configured, skipping %v", t)
		return
	}

	wg, wgCtx := errgroup.WithContext(ctx)
	wg.SetLimit(cacheCheckConcurrency)

	err := c.cache.List(wgCtx, t, func(id cairn.ID, _ int64) error {
		wg.Go(func() error {
			h := cairn.Handle{Type: t, Name: id.String()}

			cached, err := cairn.LoadAll(wgCtx, c.cache, h)
			if err != nil {
				return errors.Wrapf(err, "read cached %v", h)
			}

			authoritative, err := cairn.LoadAll(wgCtx, c.repo.Backend(), h)
			if err != nil {
				return errors.Wrapf(err, "read %v", h)
			}

			if !bytes.Equal(cached, authoritative) {
				return sendError(wgCtx, errChan, &ErrCacheMismatch{Type: t, ID: id})
			}
			return nil
		})
		return nil
	})

	werr := wg.Wait()
	if err == nil {
		err = werr
	}
	if err != nil {
		_ = sendError(ctx, errChan, errors.Fatalf("checking cached %v files failed: %v", t, err))
	}
}

// LoadIndex loads all index files and builds the in-memory index. The layout
// invariants of every pack descriptor are verified, for live packs as well as
// for packs pending removal. The index the checker builds is installed in the
// repository for the following phases.
func (c *Checker) LoadIndex(ctx context.Context, p *progress.Counter) (hints []error, errs []error) {
	debug.Log("start")

	packToIndex := make(map[cairn.ID]cairn.IDSet)

	err := repository.StreamAll(ctx, c.repo, cairn.IndexFile, p,
		func(id cairn.ID, idx index.File) error {
			debug.Log("process index %v", id.Str())

			for _, pk := range idx.Packs {
				errs = append(errs, checkPackDescriptor(pk)...)

				if _, ok := packToIndex[pk.ID]; !ok {
					packToIndex[pk.ID] = cairn.NewIDSet()
				}
				packToIndex[pk.ID].Insert(id)

				c.packs[pk.ID] = pk.Size()
				c.masterIndex.Insert(pk)
			}

			// packs pending removal must still satisfy the layout
			// invariants, but their blobs are not available for lookup
			for _, pk := range idx.PacksToDelete {
				errs = append(errs, checkPackDescriptor(pk)...)
				c.packs[pk.ID] = pk.Size()
			}

			return nil
		})
	if err != nil {
		errs = append(errs, errors.Fatalf("loading index files failed: %v", err))
		return hints, errs
	}

	for packID, indexIDs := range packToIndex {
		if len(indexIDs) > 1 {
			hints = append(hints, &ErrDuplicatePacks{PackID: packID, Indexes: indexIDs})
		}
	}

	c.repo.SetIndex(c.masterIndex)

	return hints, errs
}

// checkPackDescriptor verifies the layout invariants of one pack descriptor:
// sorted by offset, the blobs must be exactly contiguous from offset zero,
// and every blob must have the type the pack declares.
func checkPackDescriptor(p index.Pack) (errs []error) {
	blobs := make([]index.Blob, len(p.Blobs))
	copy(blobs, p.Blobs)
	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].Offset < blobs[j].Offset
	})

	kind := p.BlobType()
	var expected uint32
	for _, blob := range blobs {
		if blob.Type != kind {
			errs = append(errs, &ErrPackKind{
				PackID:   p.ID,
				BlobID:   blob.ID,
				Declared: kind,
				Found:    blob.Type,
			})
		}
		if blob.Offset != expected {
			errs = append(errs, &ErrPackOffset{
				PackID:   p.ID,
				BlobID:   blob.ID,
				Recorded: blob.Offset,
				Expected: expected,
			})
		}
		expected += blob.Length
	}

	return errs
}

// Packs reconciles the pack files the backend reports against the packs the
// index references: backend files missing from the index are orphaned, size
// differences and index entries without a backend file are errors. Results
// are sent to errChan, which is closed when the phase is done.
func (c *Checker) Packs(ctx context.Context, errChan chan<- error) {
	defer close(errChan)

	debug.Log("checking %d packs", len(c.packs))

	want := make(map[cairn.ID]int64, len(c.packs))
	for id, size := range c.packs {
		want[id] = size
	}

	err := c.repo.Backend().List(ctx, cairn.PackFile, func(id cairn.ID, size int64) error {
		expected, ok := want[id]
		if !ok {
			return sendError(ctx, errChan, &PackError{
				ID:       id,
				Orphaned: true,
				Err:      errors.New("not referenced in any index"),
			})
		}
		delete(want, id)

		if expected != size {
			return sendError(ctx, errChan, &PackError{
				ID:        id,
				Truncated: true,
				Err:       errors.Errorf("unexpected file size: got %d, expected %d", size, expected),
			})
		}
		return nil
	})
	if err != nil {
		_ = sendError(ctx, errChan, errors.Fatalf("listing pack files failed: %v", err))
		return
	}

	for id := range want {
		if sendError(ctx, errChan, &PackError{ID: id, Err: errors.New("does not exist")}) != nil {
			return
		}
	}
}

type pendingTree struct {
	id   cairn.ID
	path string
}

// Structure walks the snapshot and tree graph and verifies that every
// reference resolves: file content blobs must be non-null and present in the
// index, directory subtrees must be non-null and stored. Each tree is visited
// exactly once, no matter how many snapshots or directories reference it.
// Diagnostics are sent to errChan, which is closed when the phase is done.
func (c *Checker) Structure(ctx context.Context, p *progress.Counter, errChan chan<- error) {
	defer close(errChan)

	var backlog []pendingTree

	err := repository.StreamAll(ctx, c.repo, cairn.SnapshotFile, p,
		func(id cairn.ID, sn cairn.Snapshot) error {
			debug.Log("snapshot %v, tree %v", id.Str(), sn.Tree)

			if sn.Tree == nil || sn.Tree.IsNull() {
				return sendError(ctx, errChan, &Error{
					Err: errors.Errorf("snapshot %v has no tree", id.Str()),
				})
			}

			backlog = append(backlog, pendingTree{id: *sn.Tree, path: "/"})
			return nil
		})
	if err != nil {
		_ = sendError(ctx, errChan, errors.Fatalf("loading snapshots failed: %v", err))
		return
	}

	seen := cairn.NewIDSet()
	for len(backlog) > 0 {
		job := backlog[len(backlog)-1]
		backlog = backlog[:len(backlog)-1]

		if seen.Has(job.id) {
			continue
		}
		seen.Insert(job.id)

		tree, err := c.repo.LoadTree(ctx, job.id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if sendError(ctx, errChan, &Error{TreeID: job.id, Err: err}) != nil {
				return
			}
			continue
		}

		backlog = append(backlog, c.checkTree(ctx, job, tree, errChan)...)
	}
}

// checkTree verifies the nodes of one tree and returns the subtrees to visit
// next.
func (c *Checker) checkTree(ctx context.Context, job pendingTree, tree *cairn.Tree, errChan chan<- error) []pendingTree {
	var next []pendingTree

	for _, node := range tree.Nodes {
		nodePath := path.Join(job.path, node.Name)

		switch node.Type {
		case cairn.NodeTypeFile:
			for i, id := range node.Content {
				if id.IsNull() {
					// a null ID cannot be looked up, report it once and
					// skip the index probe
					if sendError(ctx, errChan, &Error{TreeID: job.id,
						Err: errors.Errorf("file %q blob %d has null ID", nodePath, i)}) != nil {
						return nil
					}
					continue
				}
				if !c.masterIndex.HasData(id) {
					if sendError(ctx, errChan, &Error{TreeID: job.id,
						Err: errors.Errorf("file %q blob %v missing in index", nodePath, id.Str())}) != nil {
						return nil
					}
				}
			}

		case cairn.NodeTypeDir:
			if node.Subtree == nil {
				if sendError(ctx, errChan, &Error{TreeID: job.id,
					Err: errors.Errorf("dir %q has no subtree", nodePath)}) != nil {
					return nil
				}
				continue
			}
			if node.Subtree.IsNull() {
				if sendError(ctx, errChan, &Error{TreeID: job.id,
					Err: errors.Errorf("dir %q subtree has null ID", nodePath)}) != nil {
					return nil
				}
				continue
			}
			if !c.masterIndex.Has(cairn.BlobHandle{ID: *node.Subtree, Type: cairn.TreeBlob}) {
				if sendError(ctx, errChan, &Error{TreeID: job.id,
					Err: errors.Errorf("dir %q subtree %v does not exist", nodePath, node.Subtree.Str())}) != nil {
					return nil
				}
				continue
			}
			next = append(next, pendingTree{id: *node.Subtree, path: nodePath})
		}
	}

	return next
}
