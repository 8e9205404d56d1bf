package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// MediaStore removes stored image files.
type MediaStore interface {
	Remove(ctx context.Context, name string) error
}

// Service serves the storefront listing and the catalog admin actions.
type Service struct {
	items Repository
	media MediaStore
}

// NewService creates a catalog Service.
func NewService(items Repository, media MediaStore) *Service {
	return &Service{items: items, media: media}
}

// List returns the requested 1-based page. Pages past the end are empty.
func (s *Service) List(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	total, err := s.items.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count items")
	}
	items, err := s.items.List(ctx, (page-1)*PageSize, PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	return &Page{
		Items:      items,
		Page:       page,
		TotalPages: (total + PageSize - 1) / PageSize,
	}, nil
}

// Get returns the item with the given slug.
func (s *Service) Get(ctx context.Context, slug string) (*Item, error) {
	return s.items.GetBySlug(ctx, slug)
}

// Delete removes an item, its cart lines (by cascade) and its stored images.
// File removal happens after the row is gone; a failed removal is logged
// and does not resurrect the item.
func (s *Service) Delete(ctx context.Context, slug string) error {
	item, err := s.items.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.items.Delete(ctx, item.ID); err != nil {
		return errors.Wrapf(err, "delete item %s", slug)
	}
	s.removeFiles(ctx, item.Images.Files())
	return nil
}

// ReplaceImages stores a new image set and removes files no longer referenced.
func (s *Service) ReplaceImages(ctx context.Context, slug string, images Images) (*Item, error) {
	if images.Primary == "" {
		return nil, errors.New("primary image required")
	}
	item, err := s.items.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.items.UpdateImages(ctx, item.ID, images); err != nil {
		return nil, errors.Wrapf(err, "update images of %s", slug)
	}
	s.removeFiles(ctx, item.Images.Superseded(images))
	item.Images = images
	return item, nil
}

func (s *Service) removeFiles(ctx context.Context, names []string) {
	lg := zctx.From(ctx)
	for _, name := range names {
		if err := s.media.Remove(ctx, name); err != nil {
			lg.Warn("Remove image", zap.String("file", name), zap.Error(err))
		}
	}
}
