// Package gallery owns the displayed image lists and their selections.
//
// Two views share one owner: the gallery, rebuilt from the full image list, and
// the search results, replaced by each search. Each view has its own selection
// and its own delete flag. A successful delete removes the deleted filenames
// from both views and both selections and then refreshes the gallery.
package gallery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/dkr290/genmap-web/internal/apperr"
	"github.com/dkr290/genmap-web/internal/flight"
	"github.com/dkr290/genmap-web/internal/imageapi"
	"github.com/dkr290/genmap-web/internal/notify"
	"github.com/dkr290/genmap-web/internal/selection"
)

// View names one of the two result lists.
type View string

const (
	ViewGallery View = "gallery"
	ViewSearch  View = "search"
)

// User-visible messages.
const (
	MsgSelectToDelete = "select images to delete"
	MsgDeleteFailed   = "failed to delete images"
	MsgFetchFailed    = "failed to fetch images"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Item is an image as rendered in a view.
type Item struct {
	imageapi.ImageRecord
	Selected bool `json:"selected"`
}

// ViewState is a render snapshot of one view.
type ViewState struct {
	Items    []Item `json:"items"`
	Selected int    `json:"selected"`
	Deleting bool   `json:"deleting"`
}

// State is a render snapshot of both views.
type State struct {
	Gallery ViewState `json:"gallery"`
	Search  ViewState `json:"search"`
	Loading bool      `json:"loading"`
}

type view struct {
	images   []imageapi.ImageRecord
	selected *selection.Set
	deleting flight.Flag
}

// Gallery is the single owner of the image lists.
type Gallery struct {
	service  imageapi.Service
	notifier notify.Notifier
	logger   *log.Logger

	mu    sync.Mutex
	views map[View]*view

	loading  atomic.Int32
	refSeq   atomic.Uint64
	applySeq uint64
}

// New creates an empty Gallery. Call Refresh to load the image list.
func New(service imageapi.Service, notifier notify.Notifier, logger *log.Logger) *Gallery {
	return &Gallery{
		service:  service,
		notifier: notifier,
		logger:   logger,
		views: map[View]*view{
			ViewGallery: {selected: selection.New()},
			ViewSearch:  {selected: selection.New()},
		},
	}
}

// ParseView validates a view name coming from a request.
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewGallery, ViewSearch:
		return View(s), nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown view %q", s))
	}
}

// Refresh replaces the gallery list with the backend's full list.
// When refreshes overlap, the one started last wins.
func (g *Gallery) Refresh(ctx context.Context) error {
	seq := g.refSeq.Add(1)
	g.loading.Add(1)
	defer g.loading.Add(-1)

	images, err := g.service.ListImages(ctx)
	if err != nil {
		g.logger.Error("refresh failed", "err", err)
		notify.Error(g.notifier, MsgFetchFailed)
		return apperr.Remote(MsgFetchFailed, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if seq <= g.applySeq {
		g.logger.Debug("dropping stale refresh", "seq", seq)
		return nil
	}
	g.applySeq = seq
	v := g.views[ViewGallery]
	v.images = images
	pruneSelection(v)
	g.logger.Debug("gallery refreshed", "images", len(images))
	return nil
}

// ManualRefresh is Refresh as triggered by the user. It is refused while a
// refresh or a gallery delete is running.
func (g *Gallery) ManualRefresh(ctx context.Context) error {
	if g.Loading() || g.views[ViewGallery].deleting.Busy() {
		return apperr.ErrBusy
	}
	return g.Refresh(ctx)
}

// Loading reports whether a refresh is in flight.
func (g *Gallery) Loading() bool {
	return g.loading.Load() > 0
}

// ReplaceSearchResults overwrites the search results wholesale.
func (g *Gallery) ReplaceSearchResults(results []imageapi.ImageRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.views[ViewSearch]
	v.images = append([]imageapi.ImageRecord(nil), results...)
	pruneSelection(v)
}

// ClearSearchResults empties the search results.
func (g *Gallery) ClearSearchResults() {
	g.ReplaceSearchResults(nil)
}

// Toggle flips the selection of filename in the given view and reports the
// new membership. It fails while that view is deleting.
func (g *Gallery) Toggle(name View, filename string) (bool, error) {
	v, ok := g.views[name]
	if !ok {
		return false, apperr.Validation(fmt.Sprintf("unknown view %q", name))
	}
	if v.deleting.Busy() {
		return false, apperr.ErrBusy
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !v.selected.Contains(filename) && !containsImage(v.images, filename) {
		return false, apperr.Validation(fmt.Sprintf("image %q is not shown in %s", filename, name))
	}
	return v.selected.Toggle(filename), nil
}

// Selected returns the selected filenames of a view in toggle order.
func (g *Gallery) Selected(name View) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.views[name]; ok {
		return v.selected.Filenames()
	}
	return nil
}

// DeleteSelected deletes the view's selected images after confirmation.
//
// An empty selection only warns. A declined confirmation returns
// apperr.ErrCancelled and changes nothing. A failed call leaves both lists and
// selections untouched.
func (g *Gallery) DeleteSelected(ctx context.Context, name View, confirmer Confirmer) error {
	v, ok := g.views[name]
	if !ok {
		return apperr.Validation(fmt.Sprintf("unknown view %q", name))
	}
	if !v.deleting.TryBegin() {
		return apperr.ErrBusy
	}
	defer v.deleting.End()

	g.mu.Lock()
	filenames := v.selected.Filenames()
	g.mu.Unlock()

	if len(filenames) == 0 {
		notify.Warn(g.notifier, MsgSelectToDelete)
		return apperr.Validation(MsgSelectToDelete)
	}
	if !confirmer.Confirm(fmt.Sprintf("delete %d images?", len(filenames))) {
		return apperr.ErrCancelled
	}

	resp, err := g.service.Delete(ctx, filenames)
	if err != nil {
		g.logger.Error("delete failed", "view", name, "count", len(filenames), "err", err)
		notify.Error(g.notifier, MsgDeleteFailed)
		return apperr.Remote(MsgDeleteFailed, err)
	}
	if resp != nil && len(resp.FailedFilenames) > 0 {
		g.logger.Warn("backend could not delete some images", "failed", resp.FailedFilenames)
	}

	g.mu.Lock()
	for _, other := range g.views {
		other.images = withoutFilenames(other.images, filenames)
		other.selected.Remove(filenames...)
	}
	// Refreshes started before the delete may still list the deleted images.
	g.applySeq = g.refSeq.Load()
	g.mu.Unlock()
	g.logger.Info("images deleted", "view", name, "count", len(filenames))

	// The refresh reports its own failure; the delete itself succeeded.
	_ = g.Refresh(ctx)
	return nil
}

// Snapshot returns a copy of both views for rendering.
func (g *Gallery) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		Gallery: g.viewState(g.views[ViewGallery]),
		Search:  g.viewState(g.views[ViewSearch]),
		Loading: g.Loading(),
	}
}

// Images returns a copy of a view's list.
func (g *Gallery) Images(name View) []imageapi.ImageRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.views[name]; ok {
		return append([]imageapi.ImageRecord(nil), v.images...)
	}
	return nil
}

func (g *Gallery) viewState(v *view) ViewState {
	items := make([]Item, len(v.images))
	for i, img := range v.images {
		items[i] = Item{ImageRecord: img, Selected: v.selected.Contains(img.ImageFilename)}
	}
	return ViewState{Items: items, Selected: v.selected.Len(), Deleting: v.deleting.Busy()}
}

// pruneSelection drops selected names that the view no longer shows.
func pruneSelection(v *view) {
	var stale []string
	for _, name := range v.selected.Filenames() {
		if !containsImage(v.images, name) {
			stale = append(stale, name)
		}
	}
	v.selected.Remove(stale...)
}

func containsImage(images []imageapi.ImageRecord, filename string) bool {
	for _, img := range images {
		if img.ImageFilename == filename {
			return true
		}
	}
	return false
}

func withoutFilenames(images []imageapi.ImageRecord, filenames []string) []imageapi.ImageRecord {
	drop := make(map[string]struct{}, len(filenames))
	for _, f := range filenames {
		drop[f] = struct{}{}
	}
	kept := make([]imageapi.ImageRecord, 0, len(images))
	for _, img := range images {
		if _, ok := drop[img.ImageFilename]; !ok {
			kept = append(kept, img)
		}
	}
	return kept
}
