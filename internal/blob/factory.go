package blob

import (
	"context"
	"fmt"

	"fieldcap/internal/config"
)

// OpenFromConfig selects and constructs the configured blob driver. The
// signer is only consulted by the fs and memory drivers; s3 presigns its
// own links.
func OpenFromConfig(ctx context.Context, cfg *config.Config, signer *Signer) (Store, error) {
	switch cfg.Blob.Driver {
	case "fs":
		return NewFS(cfg.Blob.Dir, signer)
	case "memory":
		return NewMemory(signer), nil
	case "s3":
		return NewS3(ctx, cfg.Blob.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
	}
}
