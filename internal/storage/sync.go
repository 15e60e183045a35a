package storage

import (
	"context"
	"fmt"
	"path/filepath"
)

// UploadTree uploads every file under localRoot to st, keyed by its path
// relative to localRoot. Used to push a finished universal checkpoint to a
// remote bucket after a conversion run completes.
func UploadTree(ctx context.Context, st Storage, localRoot string) error {
	local, err := NewLocalStorage(localRoot)
	if err != nil {
		return err
	}
	keys, err := local.List(ctx, "")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := st.UploadFile(ctx, key, filepath.Join(localRoot, filepath.FromSlash(key))); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}
	return nil
}

// DownloadTree mirrors every object under prefix in st into localRoot,
// keyed by the object's path relative to prefix. Used to stage a source
// checkpoint from a remote bucket before the index scans it.
func DownloadTree(ctx context.Context, st Storage, prefix, localRoot string) error {
	keys, err := st.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		rel := key
		if prefix != "" {
			if r, err := filepath.Rel(prefix, key); err == nil {
				rel = r
			}
		}
		dst := filepath.Join(localRoot, filepath.FromSlash(rel))
		if err := st.DownloadFile(ctx, key, dst); err != nil {
			return fmt.Errorf("download %s: %w", key, err)
		}
	}
	return nil
}
