// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

//go:build !windows

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkDiskSpace reports free space where write_file will create files.
func checkDiskSpace(dir string) string {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	return formatBytes(stat.Bavail*uint64(stat.Bsize)) + " available in " + dir
}
