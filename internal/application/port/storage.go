package port

import "context"

// StatementArchive keeps uploaded bank statements for operator review.
// Paths are relative to the archive root.
type StatementArchive interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
}
