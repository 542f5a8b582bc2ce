// Package downloads holds converted files in memory between the request that
// produced them and the request that downloads them.
//
// Temp files are deleted as soon as a conversion request finishes, so the
// result page cannot point at a file on disk. Instead the converted bytes are
// kept under an unguessable token for a limited time (DOWNLOAD_TTL) and
// served from memory. Nothing is written to disk and nothing survives a
// restart.
package downloads
