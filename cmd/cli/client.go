package cli

import (
	"github.com/labelforge/labelforge/internal/config"
	"github.com/labelforge/labelforge/pkg/labelstore"
)

// newStoreClient builds the annotation store client from config. An empty
// endpoint keeps the client's default.
func newStoreClient(cfg *config.Config) *labelstore.Client {
	opts := []labelstore.ClientOption{
		labelstore.WithAPIKey(cfg.APIKey),
		labelstore.WithTimeout(cfg.CallTimeout),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, labelstore.WithEndpoint(cfg.Endpoint))
	}
	return labelstore.NewClient(opts...)
}
