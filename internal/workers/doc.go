/*
Package workers sizes worker pools in containerized environments.

runtime.NumCPU reports the host's CPUs even when a cgroup limits the
container to a fraction of them. GOMAXPROCS follows the container limit
(Go 1.19+), so the helpers here derive counts from it:

	workers.ForCPU(8)    // 1 per CPU, at most 8
	workers.ForIO(16)    // 2 per CPU, at most 16
	workers.Count(3, 24) // 3 per CPU, at most 24

ForCrawl sizes the crawler's metadata workers. Operators can pin it with the
INDEX_WORKERS environment variable, which is useful on NFS mounts where many
concurrent stat calls hurt more than they help:

	env:
	- name: INDEX_WORKERS
	  value: "3"
*/
package workers
