package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dkr290/genmap-web/internal/apperr"
	"github.com/dkr290/genmap-web/internal/imageapi/imageapitest"
	"github.com/dkr290/genmap-web/internal/notify"
)

func ptr[T any](v T) *T { return &v }

type harness struct {
	ctrl      *Controller
	fake      *imageapitest.Fake
	notes     *notify.Queue
	refreshes atomic.Int32
}

func newHarness(t *testing.T, fake *imageapitest.Fake) *harness {
	t.Helper()
	h := &harness{fake: fake, notes: &notify.Queue{}}
	h.ctrl = New(fake, h.notes, log.New(io.Discard), func(context.Context) {
		h.refreshes.Add(1)
	})
	return h
}

func TestDefaults(t *testing.T) {
	h := newHarness(t, &imageapitest.Fake{})
	s := h.ctrl.Snapshot()

	want := DefaultParameters()
	if s.Parameters != want {
		t.Errorf("Parameters = %+v, want %+v", s.Parameters, want)
	}
	if s.Busy || s.CanSubmit {
		t.Errorf("Busy = %v, CanSubmit = %v on empty prompt", s.Busy, s.CanSubmit)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	h := newHarness(t, &imageapitest.Fake{})

	if err := h.ctrl.Update(Update{Prompt: ptr("a dog")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := h.ctrl.Update(Update{Seed: ptr(7), Size: ptr("768x512")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	p := h.ctrl.Snapshot().Parameters
	if p.Prompt != "a dog" || p.Seed != 7 || p.Width != 768 || p.Height != 512 {
		t.Errorf("Parameters = %+v", p)
	}
	if p.NumInferenceSteps != DefaultNumInferenceSteps || p.GuidanceScale != DefaultGuidanceScale {
		t.Errorf("untouched fields changed: %+v", p)
	}
}

func TestUpdateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		u    Update
	}{
		{"width too small", Update{Width: ptr(32)}},
		{"height too large", Update{Height: ptr(4096)}},
		{"steps", Update{NumInferenceSteps: ptr(5)}},
		{"guidance", Update{GuidanceScale: ptr(11.0)}},
		{"seed", Update{Seed: ptr(-1)}},
		{"bad size", Update{Size: ptr("big")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &imageapitest.Fake{})
			tt.u.Prompt = ptr("should not stick")

			err := h.ctrl.Update(tt.u)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("Update() error = %v, want ErrValidation", err)
			}
			if got := h.ctrl.Snapshot().Parameters; got != DefaultParameters() {
				t.Errorf("rejected update changed form: %+v", got)
			}
		})
	}
}

func TestSubmitEmptyPrompt(t *testing.T) {
	h := newHarness(t, &imageapitest.Fake{})
	h.ctrl.Update(Update{Prompt: ptr("   ")})

	err := h.ctrl.Submit(context.Background())
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Submit() error = %v, want ErrValidation", err)
	}
	if len(h.fake.Generated()) != 0 {
		t.Error("request sent with empty prompt")
	}
	if n := h.notes.Drain(); len(n) != 1 || n[0].Message != MsgPromptRequired {
		t.Errorf("notifications = %v", n)
	}
}

func TestSubmitSendsNullControlsAndRefreshesOnce(t *testing.T) {
	h := newHarness(t, &imageapitest.Fake{})
	h.ctrl.Update(Update{Prompt: ptr("a dog")})

	if err := h.ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	calls := h.fake.Generated()
	if len(calls) != 1 {
		t.Fatalf("generate calls = %d, want 1", len(calls))
	}
	raw, err := json.Marshal(calls[0])
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	json.Unmarshal(raw, &body)
	for _, key := range []string{
		"control_image_filename_1", "control_image_filename_2",
		"controlnet_conditioning_scale_1", "controlnet_conditioning_scale_2",
		"control_guidance_end_1", "control_guidance_end_2",
	} {
		if v, ok := body[key]; !ok || v != nil {
			t.Errorf("%s = %v (present %v), want explicit null", key, v, ok)
		}
	}
	if body["prompt"] != "a dog" || body["width"] != float64(512) || body["seed"] != float64(42) {
		t.Errorf("body = %v", body)
	}
	if got := h.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
	if h.ctrl.Busy() {
		t.Error("still busy after success")
	}
}

func TestSubmitWithControlImages(t *testing.T) {
	h := newHarness(t, &imageapitest.Fake{ControlImages: []string{"pose.png", "depth.png"}})
	h.ctrl.Update(Update{Prompt: ptr("a dancer")})

	if err := h.ctrl.SetControlImage(1, ControlImageUpdate{Filename: ptr("pose.png")}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("SetControlImage() before reload error = %v, want ErrValidation", err)
	}
	if err := h.ctrl.ReloadControlImages(context.Background()); err != nil {
		t.Fatalf("ReloadControlImages() error = %v", err)
	}
	if err := h.ctrl.SetControlImage(2, ControlImageUpdate{Filename: ptr("depth.png"), ConditioningScale: ptr(0.6)}); err != nil {
		t.Fatalf("SetControlImage(2) error = %v", err)
	}
	if err := h.ctrl.SetControlImage(2, ControlImageUpdate{GuidanceEnd: ptr(0.4)}); err != nil {
		t.Fatalf("SetControlImage(2) partial error = %v", err)
	}

	if err := h.ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	req := h.fake.Generated()[0]
	if req.ControlImageFilename1 != nil || req.ControlnetConditioningScale1 != nil || req.ControlGuidanceEnd1 != nil {
		t.Errorf("slot 1 not null: %+v", req)
	}
	if req.ControlImageFilename2 == nil || *req.ControlImageFilename2 != "depth.png" ||
		*req.ControlnetConditioningScale2 != 0.6 || *req.ControlGuidanceEnd2 != 0.4 {
		t.Errorf("slot 2 = %v %v %v", req.ControlImageFilename2, req.ControlnetConditioningScale2, req.ControlGuidanceEnd2)
	}
}

func TestControlImageReset(t *testing.T) {
	h := newHarness(t, &imageapitest.Fake{ControlImages: []string{"pose.png"}})
	h.ctrl.ReloadControlImages(context.Background())
	h.ctrl.SetControlImage(1, ControlImageUpdate{Filename: ptr("pose.png")})

	ci := h.ctrl.Snapshot().Parameters.ControlImage1
	if ci == nil || *ci != NewControlImage("pose.png") {
		t.Fatalf("ControlImage1 = %v, want defaults for pose.png", ci)
	}

	if err := h.ctrl.ResetControlImage(1); err != nil {
		t.Fatalf("ResetControlImage() error = %v", err)
	}
	if h.ctrl.Snapshot().Parameters.ControlImage1 != nil {
		t.Error("slot 1 not cleared")
	}
	if err := h.ctrl.ResetControlImage(3); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("ResetControlImage(3) error = %v, want ErrValidation", err)
	}
	if err := h.ctrl.SetControlImage(1, ControlImageUpdate{ConditioningScale: ptr(0.5)}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("SetControlImage without filename error = %v, want ErrValidation", err)
	}
	if err := h.ctrl.SetControlImage(1, ControlImageUpdate{Filename: ptr("pose.png"), GuidanceEnd: ptr(1.5)}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("SetControlImage out of range error = %v, want ErrValidation", err)
	}
}

func TestSubmitRejectsVanishedControlImage(t *testing.T) {
	fake := &imageapitest.Fake{ControlImages: []string{"pose.png"}}
	h := newHarness(t, fake)
	h.ctrl.Update(Update{Prompt: ptr("a dancer")})
	h.ctrl.ReloadControlImages(context.Background())
	h.ctrl.SetControlImage(1, ControlImageUpdate{Filename: ptr("pose.png")})

	fake.ControlImages = []string{"depth.png"}
	h.ctrl.ReloadControlImages(context.Background())

	if err := h.ctrl.Submit(context.Background()); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Submit() error = %v, want ErrValidation", err)
	}
	if len(fake.Generated()) != 0 {
		t.Error("request sent with unavailable control image")
	}
}

func TestReloadControlImagesFailureKeepsList(t *testing.T) {
	fake := &imageapitest.Fake{ControlImages: []string{"pose.png"}}
	h := newHarness(t, fake)
	h.ctrl.ReloadControlImages(context.Background())

	fake.ControlErr = errors.New("down")
	if err := h.ctrl.ReloadControlImages(context.Background()); !errors.Is(err, apperr.ErrRemote) {
		t.Fatalf("ReloadControlImages() error = %v, want ErrRemote", err)
	}
	if got := h.ctrl.Snapshot().ControlImages; len(got) != 1 || got[0] != "pose.png" {
		t.Errorf("ControlImages = %v", got)
	}
	if n := h.notes.Drain(); len(n) != 1 || n[0].Message != MsgReloadControlsFailed {
		t.Errorf("notifications = %v", n)
	}
}

func TestSubmitFailurePreservesForm(t *testing.T) {
	fake := &imageapitest.Fake{GenerateErr: errors.New("cuda out of memory")}
	h := newHarness(t, fake)
	h.ctrl.Update(Update{Prompt: ptr("a dog"), Seed: ptr(99)})
	before := h.ctrl.Snapshot().Parameters

	err := h.ctrl.Submit(context.Background())
	if !errors.Is(err, apperr.ErrRemote) {
		t.Fatalf("Submit() error = %v, want ErrRemote", err)
	}
	if after := h.ctrl.Snapshot().Parameters; after != before {
		t.Errorf("form changed after failure: %+v -> %+v", before, after)
	}
	if h.refreshes.Load() != 0 {
		t.Error("refresh fired after failure")
	}
	if h.ctrl.Busy() {
		t.Error("still busy after failure")
	}
	if n := h.notes.Drain(); len(n) != 1 || n[0].Level != notify.LevelError || n[0].Message != MsgGenerateFailed {
		t.Errorf("notifications = %v", n)
	}
}

func TestSubmitIsSingleFlight(t *testing.T) {
	fake := &imageapitest.Fake{Gate: make(chan struct{}), Started: make(chan struct{}, 1)}
	h := newHarness(t, fake)
	h.ctrl.Update(Update{Prompt: ptr("a dog")})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Submit(context.Background()) }()

	select {
	case <-fake.Started:
	case <-time.After(time.Second):
		t.Fatal("first submit never reached the service")
	}

	if !h.ctrl.Snapshot().Busy {
		t.Error("Busy = false while generating")
	}
	if err := h.ctrl.Submit(context.Background()); !errors.Is(err, apperr.ErrBusy) {
		t.Errorf("second Submit() error = %v, want ErrBusy", err)
	}
	if err := h.ctrl.Update(Update{Seed: ptr(1)}); !errors.Is(err, apperr.ErrBusy) {
		t.Errorf("Update() while busy error = %v, want ErrBusy", err)
	}

	close(fake.Gate)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	if got := len(fake.Generated()); got != 1 {
		t.Errorf("generate calls = %d, want 1", got)
	}
	if got := h.refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
}
