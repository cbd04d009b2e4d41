package processor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nguyentantai21042004/transflow/internal/storage"
)

// Archive moves a processed input into the archived folder.
func (p *implProcessor) Archive(ctx context.Context, path string) error {
	dest := filepath.Join(p.cfg.Paths.Archived, filepath.Base(path))

	p.logger.Info(ctx, "Moving to archived folder: %s -> %s", path, dest)

	if err := storage.Move(ctx, path, dest); err != nil {
		return fmt.Errorf("move to archived: %w", err)
	}
	return nil
}
