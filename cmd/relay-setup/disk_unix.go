// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package main

import "syscall"

// freeDiskSpace returns the free bytes available to this user at path.
func freeDiskSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	// Bavail, not Bfree: count only what a non-root user can use.
	return stat.Bavail * uint64(stat.Bsize), nil
}
