//go:build !unix

package store

// Without flock(2) only the process mutex applies; processes sharing the
// document must be serialized externally.
type fileLock struct{}

func lockFile(string) (*fileLock, error) { return &fileLock{}, nil }

func (*fileLock) Unlock() {}
