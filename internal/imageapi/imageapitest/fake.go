// Package imageapitest provides an in-memory image service for tests.
package imageapitest

import (
	"context"
	"sync"

	"github.com/dkr290/genmap-web/internal/imageapi"
)

// Fake records every call and answers from its fields.
// Setting an Err field makes the matching call fail. A non-nil Gate makes
// Generate, Search and Delete block until the channel is closed or receives.
// ListGates[i], when set, holds the (i+1)th ListImages call the same way after
// it has copied Images, so a held call returns the list as it was when it began.
type Fake struct {
	mu sync.Mutex

	Images        []imageapi.ImageRecord
	ControlImages []string
	SearchResults []imageapi.ImageRecord

	ListErr     error
	ControlErr  error
	GenerateErr error
	SearchErr   error
	DeleteErr   error

	Gate      chan struct{}
	ListGates []chan struct{}
	Started   chan struct{}

	ListCalls     int
	ControlCalls  int
	GenerateCalls []imageapi.GenerateRequest
	SearchCalls   []imageapi.SearchRequest
	DeleteCalls   [][]string
}

var _ imageapi.Service = (*Fake)(nil)

func (f *Fake) ListImages(ctx context.Context) ([]imageapi.ImageRecord, error) {
	f.mu.Lock()
	f.ListCalls++
	if f.ListErr != nil {
		f.mu.Unlock()
		return nil, f.ListErr
	}
	out := make([]imageapi.ImageRecord, len(f.Images))
	copy(out, f.Images)
	var gate chan struct{}
	if i := f.ListCalls - 1; i < len(f.ListGates) {
		gate = f.ListGates[i]
	}
	f.mu.Unlock()

	if gate != nil {
		if err := f.hold(ctx, gate); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *Fake) ListControlImages(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ControlCalls++
	if f.ControlErr != nil {
		return nil, f.ControlErr
	}
	out := make([]string, len(f.ControlImages))
	copy(out, f.ControlImages)
	return out, nil
}

func (f *Fake) Generate(ctx context.Context, req imageapi.GenerateRequest) error {
	f.mu.Lock()
	f.GenerateCalls = append(f.GenerateCalls, req)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.GenerateErr
}

func (f *Fake) Search(ctx context.Context, req imageapi.SearchRequest) ([]imageapi.ImageRecord, error) {
	f.mu.Lock()
	f.SearchCalls = append(f.SearchCalls, req)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	out := make([]imageapi.ImageRecord, len(f.SearchResults))
	copy(out, f.SearchResults)
	return out, nil
}

// Delete removes the names from Images on success.
func (f *Fake) Delete(ctx context.Context, filenames []string) (*imageapi.DeleteResponse, error) {
	f.mu.Lock()
	f.DeleteCalls = append(f.DeleteCalls, append([]string(nil), filenames...))
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}
	drop := make(map[string]bool, len(filenames))
	for _, name := range filenames {
		drop[name] = true
	}
	kept := f.Images[:0:0]
	for _, img := range f.Images {
		if !drop[img.ImageFilename] {
			kept = append(kept, img)
		}
	}
	f.Images = kept
	return &imageapi.DeleteResponse{
		Status:           "success",
		DeletedFilenames: filenames,
		FailedFilenames:  []string{},
	}, nil
}

// Generated returns a copy of the recorded generate requests.
func (f *Fake) Generated() []imageapi.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imageapi.GenerateRequest(nil), f.GenerateCalls...)
}

// Searched returns a copy of the recorded search requests.
func (f *Fake) Searched() []imageapi.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imageapi.SearchRequest(nil), f.SearchCalls...)
}

// Deleted returns a copy of the recorded delete requests.
func (f *Fake) Deleted() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.DeleteCalls...)
}

// Lists returns how many times ListImages was called.
func (f *Fake) Lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ListCalls
}

func (f *Fake) wait(ctx context.Context) error {
	if f.Gate == nil {
		f.signal()
		return nil
	}
	return f.hold(ctx, f.Gate)
}

// hold signals Started and blocks until gate opens or ctx ends.
func (f *Fake) hold(ctx context.Context, gate chan struct{}) error {
	f.signal()
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) signal() {
	if f.Started != nil {
		select {
		case f.Started <- struct{}{}:
		default:
		}
	}
}
