// Package mounts decides which directories the indexer crawls and watches.
//
// With no configured roots every physical mount point reported by the OS is
// used, falling back to "/" when none is found. Mount points of virtual
// filesystems such as proc and sysfs are reported separately so the crawler
// can prune them when they appear below a root.
package mounts
