package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/checker"
	"github.com/cairn-backup/cairn/internal/errors"
)

func newCheckCommand() *cobra.Command {
	var opts CheckOptions

	cmd := &cobra.Command{
		Use:   "check [flags]",
		Short: "Check the repository for errors",
		Long: `
The "check" command tests the repository for errors and reports any errors it
finds. It compares the local cache mirror against the backend, verifies the
index against the stored pack files and walks the complete snapshot and tree
structure.

By default the contents of the pack files are not read. Pass --read-data to
also download every pack and verify each blob.
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), opts, globalOptions)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

// CheckOptions bundles all options for the check command.
type CheckOptions struct {
	ReadData bool
}

func (opts *CheckOptions) AddFlags(f *pflag.FlagSet) {
	f.BoolVar(&opts.ReadData, "read-data", false, "read all data blobs")
}

func runCheck(ctx context.Context, opts CheckOptions, gopts GlobalOptions) error {
	repo, err := openRepository(gopts)
	if err != nil {
		return err
	}
	defer func() {
		_ = repo.Backend().Close()
	}()

	chk := checker.New(repo, openCache(gopts))
	var summary checker.Summary

	collect := func(run func(chan<- error)) error {
		errChan := make(chan error)
		go run(errChan)
		for err := range errChan {
			summary.Record(err)
			Warnf("error: %v\n", err)
		}
		if summary.Fatal() {
			return errors.Fatal("checker aborted, repository could not be read completely")
		}
		return nil
	}

	for _, t := range []cairn.FileType{cairn.SnapshotFile, cairn.IndexFile} {
		Verbosef("check cache mirror for %v files\n", t)
		if err := collect(func(errChan chan<- error) {
			chk.CacheFiles(ctx, t, errChan)
		}); err != nil {
			return err
		}
	}

	Verbosef("load indexes\n")
	p := newProgressCounter("index files loaded")
	hints, errs := chk.LoadIndex(ctx, p)
	p.Done()

	for _, hint := range hints {
		summary.RecordHint(hint)
		Verbosef("hint: %v\n", hint)
	}
	for _, err := range errs {
		summary.Record(err)
		Warnf("error: %v\n", err)
	}
	if summary.Fatal() {
		return errors.Fatal("LoadIndex returned fatal error")
	}

	Verbosef("check all packs\n")
	if err := collect(func(errChan chan<- error) {
		chk.Packs(ctx, errChan)
	}); err != nil {
		return err
	}

	Verbosef("check cache mirror for pack files\n")
	if err := collect(func(errChan chan<- error) {
		chk.CacheFiles(ctx, cairn.PackFile, errChan)
	}); err != nil {
		return err
	}

	Verbosef("check snapshots, trees and blobs\n")
	p = newProgressCounter("snapshots checked")
	err = collect(func(errChan chan<- error) {
		chk.Structure(ctx, p, errChan)
	})
	p.Done()
	if err != nil {
		return err
	}

	if opts.ReadData {
		Verbosef("read all data\n")
		if err := collect(func(errChan chan<- error) {
			chk.ReadData(ctx, errChan)
		}); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if summary.NumErrors() > 0 {
		return errors.Fatalf("repository contains errors: %v", summary.String())
	}

	Verbosef("no errors were found\n")
	return nil
}
