package index

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/originality/internal/model"
)

// New opens the store selected by cfg.Backend
func New(cfg model.IndexConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir, logger)
	case "qdrant":
		if cfg.QdrantAddr == "" {
			return nil, fmt.Errorf("index backend qdrant requires index.qdrant_addr")
		}
		return NewQdrantStore(cfg.QdrantAddr, cfg.QdrantCollection, logger)
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
}
