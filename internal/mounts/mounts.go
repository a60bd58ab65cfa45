package mounts

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/shirou/gopsutil/v4/disk"

	"file-server/internal/logging"
)

// pseudoFSTypes are filesystem types that hold no user files.
var pseudoFSTypes = map[string]bool{
	"autofs":      true,
	"binfmt_misc": true,
	"bpf":         true,
	"cgroup":      true,
	"cgroup2":     true,
	"configfs":    true,
	"debugfs":     true,
	"devpts":      true,
	"devtmpfs":    true,
	"fusectl":     true,
	"hugetlbfs":   true,
	"mqueue":      true,
	"nsfs":        true,
	"proc":        true,
	"pstore":      true,
	"securityfs":  true,
	"sysfs":       true,
	"tracefs":     true,
}

// listPartitions is replaced in tests.
var listPartitions = disk.PartitionsWithContext

// Layout is the result of Discover.
type Layout struct {
	// Roots are the directories crawled and watched.
	Roots []string
	// Excluded are virtual filesystem mount points never descended into.
	Excluded []string
}

// Discover returns the crawl roots and excluded mount points. Configured
// roots take precedence over the OS mount table.
func Discover(ctx context.Context, configured []string) (Layout, error) {
	excluded, err := PseudoMounts(ctx)
	if err != nil {
		logging.Warn("Could not list virtual filesystems: %v", err)
	}

	if len(configured) > 0 {
		roots, err := normalize(configured)
		if err != nil {
			return Layout{}, err
		}
		return Layout{Roots: roots, Excluded: excluded}, nil
	}

	roots, err := MountPoints(ctx)
	if err != nil {
		return Layout{}, err
	}
	return Layout{Roots: roots, Excluded: excluded}, nil
}

// MountPoints returns every physical mount point, or "/" when the OS
// reports none.
func MountPoints(ctx context.Context) ([]string, error) {
	partitions, err := listPartitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	var points []string
	for _, p := range partitions {
		if pseudoFSTypes[p.Fstype] || p.Mountpoint == "" {
			continue
		}
		points = append(points, p.Mountpoint)
	}
	if len(points) == 0 {
		logging.Warn("No mount points reported, indexing from /")
		return []string{string(filepath.Separator)}, nil
	}
	return normalize(points)
}

// PseudoMounts returns the mount points of virtual filesystems.
func PseudoMounts(ctx context.Context) ([]string, error) {
	partitions, err := listPartitions(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	var points []string
	for _, p := range partitions {
		if pseudoFSTypes[p.Fstype] && p.Mountpoint != "" {
			points = append(points, p.Mountpoint)
		}
	}
	return normalize(points)
}

// normalize makes every path absolute and clean, then sorts and dedupes.
func normalize(paths []string) ([]string, error) {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", p, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	sort.Strings(out)
	return out, nil
}
