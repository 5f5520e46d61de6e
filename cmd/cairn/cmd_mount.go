//go:build darwin || freebsd || linux

package main

import (
	"context"

	systemFuse "github.com/anacrolix/fuse"
	"github.com/anacrolix/fuse/fs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/fuse"
	"github.com/cairn-backup/cairn/internal/index"
	"github.com/cairn-backup/cairn/internal/repository"
	"github.com/cairn-backup/cairn/internal/vfs"
)

func registerMountCommand(parent *cobra.Command) {
	parent.AddCommand(newMountCommand())
}

func newMountCommand() *cobra.Command {
	var opts MountOptions

	cmd := &cobra.Command{
		Use:   "mount [flags] mountpoint",
		Short: "Mount a snapshot as a read-only filesystem",
		Long: `
The "mount" command serves the contents of a snapshot via a FUSE filesystem
mounted at the given mountpoint. Quit with Ctrl-c or umount the mountpoint
when finished.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMount(cmd.Context(), opts, globalOptions, args)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

// MountOptions bundles all options for the mount command.
type MountOptions struct {
	Snapshot   string
	AllowOther bool
}

func (opts *MountOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&opts.Snapshot, "snapshot", "latest", "`snapshot` ID to mount")
	f.BoolVar(&opts.AllowOther, "allow-other", false, "allow other users to access the mountpoint")
}

func runMount(ctx context.Context, opts MountOptions, gopts GlobalOptions, args []string) error {
	if len(args) != 1 {
		return errors.Fatal("wrong number of parameters")
	}
	mountpoint := args[0]

	repo, err := openRepository(gopts)
	if err != nil {
		return err
	}
	defer func() {
		_ = repo.Backend().Close()
	}()

	Verbosef("load indexes\n")
	mi := index.NewMasterIndex()
	err = repository.StreamAll(ctx, repo, cairn.IndexFile, nil,
		func(_ cairn.ID, idx index.File) error {
			for _, p := range idx.Packs {
				mi.Insert(p)
			}
			return nil
		})
	if err != nil {
		return err
	}
	repo.SetIndex(mi)

	sn, err := findSnapshot(ctx, repo, opts.Snapshot)
	if err != nil {
		return err
	}
	if sn.Tree == nil || sn.Tree.IsNull() {
		return errors.Fatalf("snapshot %v has no tree", sn.ID().Str())
	}
	Verbosef("mounting snapshot %v\n", sn)

	mountOptions := []systemFuse.MountOption{
		systemFuse.ReadOnly(),
		systemFuse.FSName("cairn"),
		systemFuse.Subtype("cairn"),
	}
	if opts.AllowOther {
		mountOptions = append(mountOptions, systemFuse.AllowOther())
	}

	conn, err := systemFuse.Mount(mountpoint, mountOptions...)
	if err != nil {
		return err
	}

	systemFuse.Debug = func(msg interface{}) {
		debug.Log("fuse: %v", msg)
	}

	root := fuse.NewRoot(vfs.New(repo, *sn.Tree))

	Printf("Now serving the repository at %s\n", mountpoint)
	Printf("When finished, quit with Ctrl-c here or umount the mountpoint.\n")

	done := make(chan struct{})
	var serveErr error
	go func() {
		defer close(done)
		serveErr = fs.Serve(conn, root)
	}()

	select {
	case <-ctx.Done():
		debug.Log("unmounting %v", mountpoint)
		if err := systemFuse.Unmount(mountpoint); err != nil {
			Warnf("unable to umount (maybe already umounted or still in use?): %v\n", err)
		}
		<-done
		return conn.Close()
	case <-done:
		_ = conn.Close()
		return serveErr
	}
}
