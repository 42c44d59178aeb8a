package store

import (
	"context"
	"fmt"
	"sync"
)

// Batch buffers the records of one file in memory. Parsing workers fill
// batches concurrently and the indexer commits them one at a time, so a
// file's records reach storage together.
//
// Thread safety: the mutex protects the slices; a Batch may be shared by
// goroutines extracting different parts of the same file.
type Batch struct {
	mu sync.Mutex

	File           *File
	Classes        []*Class
	ClassConstants []*ClassConstant
	Methods        []*Method
	Members        []*Member
	Functions      []*Function
	Constants      []*Constant
	Uses           []*Use
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) AddFile(_ context.Context, f *File) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.File = f
	return nil
}

func (b *Batch) AddClass(_ context.Context, c *Class) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Classes = append(b.Classes, c)
	return nil
}

func (b *Batch) AddClassConstant(_ context.Context, c *ClassConstant) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ClassConstants = append(b.ClassConstants, c)
	return nil
}

func (b *Batch) AddMethod(_ context.Context, m *Method) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Methods = append(b.Methods, m)
	return nil
}

func (b *Batch) AddMember(_ context.Context, m *Member) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Members = append(b.Members, m)
	return nil
}

func (b *Batch) AddFunction(_ context.Context, f *Function) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Functions = append(b.Functions, f)
	return nil
}

func (b *Batch) AddConstant(_ context.Context, c *Constant) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Constants = append(b.Constants, c)
	return nil
}

func (b *Batch) AddUse(_ context.Context, u *Use) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Uses = append(b.Uses, u)
	return nil
}

// Len returns the number of buffered records, the file record included.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.Classes) + len(b.ClassConstants) + len(b.Methods) + len(b.Members) +
		len(b.Functions) + len(b.Constants) + len(b.Uses)
	if b.File != nil {
		n++
	}
	return n
}

// FileReplacer is implemented by back-ends that apply a whole batch in
// one step. ReplaceFile is called with the batch locked.
type FileReplacer interface {
	ReplaceFile(ctx context.Context, b *Batch) error
}

// Commit replaces the records of the batch's file in s: the file is
// removed first, then every buffered record is written. Back-ends that
// commit in chunks only do so before the removal or the file record, so
// the removal and the new records land together.
func (b *Batch) Commit(ctx context.Context, s Storage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.File == nil {
		return fmt.Errorf("commit batch: no file record")
	}
	if r, ok := s.(FileReplacer); ok {
		return r.ReplaceFile(ctx, b)
	}
	path := b.File.Path
	if err := s.RemoveFile(ctx, path); err != nil {
		return fmt.Errorf("commit batch: remove %s: %w", path, err)
	}
	if err := s.AddFile(ctx, b.File); err != nil {
		return fmt.Errorf("commit batch: file %s: %w", path, err)
	}
	for _, c := range b.Classes {
		if err := s.AddClass(ctx, c); err != nil {
			return fmt.Errorf("commit batch: class %q: %w", c.Name, err)
		}
	}
	for _, c := range b.ClassConstants {
		if err := s.AddClassConstant(ctx, c); err != nil {
			return fmt.Errorf("commit batch: class constant %q: %w", c.Name, err)
		}
	}
	for _, m := range b.Methods {
		if err := s.AddMethod(ctx, m); err != nil {
			return fmt.Errorf("commit batch: method %q: %w", m.Name, err)
		}
	}
	for _, m := range b.Members {
		if err := s.AddMember(ctx, m); err != nil {
			return fmt.Errorf("commit batch: member %q: %w", m.Name, err)
		}
	}
	for _, f := range b.Functions {
		if err := s.AddFunction(ctx, f); err != nil {
			return fmt.Errorf("commit batch: function %q: %w", f.Name, err)
		}
	}
	for _, c := range b.Constants {
		if err := s.AddConstant(ctx, c); err != nil {
			return fmt.Errorf("commit batch: constant %q: %w", c.Name, err)
		}
	}
	for _, u := range b.Uses {
		if err := s.AddUse(ctx, u); err != nil {
			return fmt.Errorf("commit batch: use %q: %w", u.Name, err)
		}
	}
	return nil
}
