//go:build !darwin && !freebsd && !linux

package main

import "github.com/spf13/cobra"

// Mounting snapshots is only supported where a FUSE implementation exists.
func registerMountCommand(_ *cobra.Command) {
}
