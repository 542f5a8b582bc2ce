// Package memory sets the Go runtime's soft memory limit from container
// settings.
//
// Converted files are held in memory until they are downloaded or expire,
// and every upload is parsed by the multipart reader before it reaches
// disk. In a memory-limited container the garbage collector needs to know
// the limit to avoid an OOM kill while a few large results are held.
//
// Environment variables, in order of precedence:
//   - GOMEMLIMIT: standard Go variable; when set it is left alone
//   - MEMORY_LIMIT: container limit in bytes, e.g. from the Kubernetes
//     Downward API (resources.limits.memory)
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap
//     (default 0.75; ffmpeg runs outside the heap and needs the rest)
package memory
