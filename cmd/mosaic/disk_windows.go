// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

//go:build windows

package main

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// checkDiskSpace reports free space where write_file will create files.
func checkDiskSpace(dir string) string {
	path, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	var free uint64
	if err := windows.GetDiskFreeSpaceEx(path, &free, nil, nil); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	return formatBytes(free) + " available in " + dir
}
