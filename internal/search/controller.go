// Package search holds the similarity search form and submits it.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dkr290/genmap-web/internal/apperr"
	"github.com/dkr290/genmap-web/internal/flight"
	"github.com/dkr290/genmap-web/internal/imageapi"
	"github.com/dkr290/genmap-web/internal/notify"
)

// Mode selects which payload a search sends.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
)

const (
	DefaultTopK = 3
	MinTopK     = 1
	MaxTopK     = 10
)

// User-visible messages.
const (
	MsgTextRequired  = "a search query is required"
	MsgImageRequired = "an image file is required"
	MsgSearchFailed  = "failed to search images"
)

// Results receives the outcome of a search.
type Results interface {
	ReplaceSearchResults(results []imageapi.ImageRecord)
	ClearSearchResults()
}

// ParseMode validates a mode coming from a request.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeText, ModeImage:
		return Mode(s), nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown search mode %q", s))
	}
}

// Controller owns one search form. At most one search is in flight.
//
// Switching mode only flips the flag: the text typed before switching to image
// mode stays in the form and is ignored until text mode is chosen again, and
// the same holds for a selected file.
type Controller struct {
	service  imageapi.Service
	results  Results
	notifier notify.Notifier
	logger   *log.Logger

	busy flight.Flag

	mu    sync.Mutex
	mode  Mode
	text  string
	image *imageapi.ImageFile
	topK  int
}

// State is a render snapshot of the form. The image bytes are not included.
type State struct {
	Mode          Mode   `json:"mode"`
	Text          string `json:"text"`
	ImageFilename string `json:"image_filename,omitempty"`
	TopK          int    `json:"topk"`
	Busy          bool   `json:"busy"`
	CanSubmit     bool   `json:"can_submit"`
}

// New creates a controller in text mode with the default topk.
func New(service imageapi.Service, results Results, notifier notify.Notifier, logger *log.Logger) *Controller {
	return &Controller{
		service:  service,
		results:  results,
		notifier: notifier,
		logger:   logger,
		mode:     ModeText,
		topK:     DefaultTopK,
	}
}

// SetMode switches the active payload.
func (c *Controller) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	return nil
}

// SetText replaces the text query. Refused while a search is in flight.
func (c *Controller) SetText(text string) error {
	if c.busy.Busy() {
		return apperr.ErrBusy
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

// SetImage replaces the query image; nil clears it. Refused while a search is in flight.
func (c *Controller) SetImage(img *imageapi.ImageFile) error {
	if c.busy.Busy() {
		return apperr.ErrBusy
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.image = img
	return nil
}

// SetTopK sets how many results to ask for.
func (c *Controller) SetTopK(k int) error {
	if k < MinTopK || k > MaxTopK {
		return apperr.Validation(fmt.Sprintf("topk must be between %d and %d", MinTopK, MaxTopK))
	}
	if c.busy.Busy() {
		return apperr.ErrBusy
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topK = k
	return nil
}

// Submit runs the search for the active mode.
//
// Missing input for the active mode sends nothing. A successful search
// replaces the results wholesale; a failed one empties them.
func (c *Controller) Submit(ctx context.Context) error {
	if !c.busy.TryBegin() {
		return apperr.ErrBusy
	}
	defer c.busy.End()

	c.mu.Lock()
	req, msg := c.request()
	c.mu.Unlock()
	if msg != "" {
		notify.Warn(c.notifier, msg)
		return apperr.Validation(msg)
	}

	results, err := c.service.Search(ctx, req)
	if err != nil {
		c.logger.Error("search failed", "err", err)
		notify.Error(c.notifier, MsgSearchFailed)
		c.results.ClearSearchResults()
		return apperr.Remote(MsgSearchFailed, err)
	}

	c.logger.Info("search done", "mode", c.Mode(), "topk", req.TopK, "results", len(results))
	c.results.ReplaceSearchResults(results)
	return nil
}

// request builds the outgoing search. Callers hold c.mu.
func (c *Controller) request() (imageapi.SearchRequest, string) {
	req := imageapi.SearchRequest{TopK: c.topK}
	switch c.mode {
	case ModeImage:
		if c.image == nil {
			return req, MsgImageRequired
		}
		img := *c.image
		req.Image = &img
	default:
		if strings.TrimSpace(c.text) == "" {
			return req, MsgTextRequired
		}
		text := c.text
		req.Text = &text
	}
	return req, ""
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Busy reports whether a search is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Busy()
}

// Snapshot returns a copy of the form for rendering.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Mode: c.mode,
		Text: c.text,
		TopK: c.topK,
		Busy: c.busy.Busy(),
	}
	if c.image != nil {
		s.ImageFilename = c.image.Filename
	}
	_, msg := c.request()
	s.CanSubmit = !s.Busy && msg == ""
	return s
}
