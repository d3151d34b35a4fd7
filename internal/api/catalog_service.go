package api

import (
	"context"

	"fieldtag/internal/store"
)

// CatalogReader abstracts store interactions needed for API queries.
type CatalogReader interface {
	ListEntries(ctx context.Context) ([]*store.Entry, error)
	GetEntry(ctx context.Context, id int64) (*store.Entry, error)
	ListStudies(ctx context.Context) ([]*store.Study, error)
	GetStudy(ctx context.Context, id int64) (*store.Study, error)
	ListStagingRows(ctx context.Context) ([]*store.StagingRow, error)
}

// CatalogService exposes read-only catalog operations returning API DTOs.
type CatalogService struct {
	store CatalogReader
}

// NewCatalogService constructs a CatalogService around the provided reader.
func NewCatalogService(store CatalogReader) *CatalogService {
	if store == nil {
		return nil
	}
	return &CatalogService{store: store}
}

// Entries returns all ingested entries.
func (s *CatalogService) Entries(ctx context.Context) ([]Entry, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	return FromEntries(entries), nil
}

// Entry fetches a single entry.
func (s *CatalogService) Entry(ctx context.Context, id int64) (*Entry, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}
	dto := FromEntry(entry)
	return &dto, nil
}

// Studies returns all studies.
func (s *CatalogService) Studies(ctx context.Context) ([]Study, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	studies, err := s.store.ListStudies(ctx)
	if err != nil {
		return nil, err
	}
	return FromStudies(studies), nil
}

// Study fetches a single study.
func (s *CatalogService) Study(ctx context.Context, id int64) (*Study, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	study, err := s.store.GetStudy(ctx, id)
	if err != nil || study == nil {
		return nil, err
	}
	dto := FromStudy(study)
	return &dto, nil
}

// StagingRows returns the current staging store contents.
func (s *CatalogService) StagingRows(ctx context.Context) ([]StagingRow, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rows, err := s.store.ListStagingRows(ctx)
	if err != nil {
		return nil, err
	}
	return FromStagingRows(rows), nil
}
