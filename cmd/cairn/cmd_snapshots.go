package main

import (
	"context"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/repository"
)

func newSnapshotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List all snapshots stored in the repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshots(cmd.Context(), globalOptions)
		},
	}
}

func runSnapshots(ctx context.Context, gopts GlobalOptions) error {
	repo, err := openRepository(gopts)
	if err != nil {
		return err
	}
	defer func() {
		_ = repo.Backend().Close()
	}()

	snapshots, err := loadSnapshots(ctx, repo)
	if err != nil {
		return err
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Time.Before(snapshots[j].Time)
	})

	for _, sn := range snapshots {
		Printf("%v  %v  %v  %v\n", sn.ID().Str(), sn.Time.Format(TimeFormat),
			sn.Hostname, strings.Join(sn.Paths, " "))
	}
	Verbosef("%d snapshots\n", len(snapshots))

	return nil
}

func loadSnapshots(ctx context.Context, repo *repository.Repository) ([]*cairn.Snapshot, error) {
	var snapshots []*cairn.Snapshot

	err := repository.StreamAll(ctx, repo, cairn.SnapshotFile, nil,
		func(id cairn.ID, sn cairn.Snapshot) error {
			sn.SetID(id)
			snapshots = append(snapshots, &sn)
			return nil
		})
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}

// findSnapshot resolves spec to one snapshot: "latest", a full ID or a
// unique ID prefix.
func findSnapshot(ctx context.Context, repo *repository.Repository, spec string) (*cairn.Snapshot, error) {
	snapshots, err := loadSnapshots(ctx, repo)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, errors.Fatal("no snapshots found in the repository")
	}

	if spec == "latest" {
		latest := snapshots[0]
		for _, sn := range snapshots[1:] {
			if sn.Time.After(latest.Time) {
				latest = sn
			}
		}
		return latest, nil
	}

	var found *cairn.Snapshot
	for _, sn := range snapshots {
		if strings.HasPrefix(sn.ID().String(), spec) {
			if found != nil {
				return nil, errors.Fatalf("snapshot ID %q is ambiguous", spec)
			}
			found = sn
		}
	}
	if found == nil {
		return nil, errors.Fatalf("no snapshot found for %q", spec)
	}

	return found, nil
}
