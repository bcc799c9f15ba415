package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"examist/internal/blob"
	"examist/pkg/domain"
)

// Documents resolves paper PDFs for GetPaperContents.
type Documents struct {
	Store  blob.Store
	Expiry time.Duration
}

// Describe returns {document:{paper,key,size,content_type,url}} for the paper
// sitting. url is empty when the store cannot presign.
func (d Documents) Describe(ctx context.Context, paper int64, code string, year int, period string) (domain.Entity, error) {
	if d.Store == nil {
		return nil, NotFound("document store", "for "+code)
	}
	key := blob.PaperKey(code, year, period)
	info, err := d.Store.Head(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, NotFound("document", key)
	}
	if err != nil {
		return nil, fmt.Errorf("head %s: %w", key, err)
	}
	url, err := d.Store.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: d.Expiry})
	if err != nil && !errors.Is(err, blob.ErrUnsupported) {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	return domain.Entity{"document": domain.Entity{
		"paper":        paper,
		"key":          info.Key,
		"size":         info.Size,
		"content_type": info.ContentType,
		"url":          url,
	}}, nil
}
