package services

import (
	"context"

	"github.com/diewo77/go-billing/internal/numbering"
)

// NumberService exposes number allocation to forms that need a number
// before the document exists.
type NumberService struct {
	Alloc *numbering.Allocator
}

func NewNumberService(alloc *numbering.Allocator) *NumberService {
	return &NumberService{Alloc: alloc}
}

// GetNextNumber reserves the next number of kind.
func (s *NumberService) GetNextNumber(ctx context.Context, kind string) (string, error) {
	k, err := numbering.ParseKind(kind)
	if err != nil {
		return "", err
	}
	return s.Alloc.Next(ctx, k)
}

// Peek previews the next number of kind without reserving it.
func (s *NumberService) Peek(ctx context.Context, kind string) (string, error) {
	k, err := numbering.ParseKind(kind)
	if err != nil {
		return "", err
	}
	return s.Alloc.Peek(ctx, k)
}

func isDuplicate(err error) bool { return numbering.IsDuplicate(err) }
