// Package wizard holds the screen state machine driving a capture
// session. The controller is pure: it owns the draft and decides
// transitions; all network and disk work happens in the layers driving
// it.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"fieldcap/internal/ingest"
	"fieldcap/internal/record"
)

// Screen identifies one wizard page.
type Screen string

const (
	ScreenUserInfo     Screen = "user-info"
	ScreenDashboard    Screen = "dashboard"
	ScreenGeoLocation  Screen = "geo-location"
	ScreenMetadataForm Screen = "metadata-form"
	ScreenVideoUpload  Screen = "video-upload"
	ScreenReviewSubmit Screen = "review-submit"
	ScreenHistory      Screen = "upload-history"
)

// ErrTransition reports a move the current state does not allow.
var ErrTransition = errors.New("invalid wizard transition")

func transitionErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransition, fmt.Sprintf(format, args...))
}

// Draft accumulates everything a test collects before submission. It is
// owned by the controller; screens render it and broadcast edits back,
// they never hold their own copy of the truth.
type Draft struct {
	TestID     string
	Fix        *record.GeoFix
	Metadata   *record.Metadata
	Files      ingest.Selection
	SkipVideos bool
	EditMode   bool
}

// Controller is the wizard state machine.
type Controller struct {
	screen  Screen
	session record.Session
	draft   Draft
	now     func() time.Time
}

// New starts the wizard. A previously resolved session fast-forwards
// past identity selection straight to the dashboard.
func New(session record.Session, opts ...Option) *Controller {
	c := &Controller{
		screen: ScreenUserInfo,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if session.ID != "" {
		c.session = session
		c.screen = ScreenDashboard
	}
	return c
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func (c *Controller) Screen() Screen            { return c.screen }
func (c *Controller) Session() record.Session   { return c.session }
func (c *Controller) Draft() *Draft             { return &c.draft }
func (c *Controller) EditMode() bool            { return c.draft.EditMode }
func (c *Controller) User() record.UserIdentity { return c.session.User }

// BindSession attaches the established session and moves to the
// dashboard. Only valid from identity selection.
func (c *Controller) BindSession(session record.Session) error {
	if c.screen != ScreenUserInfo {
		return transitionErr("session binding only allowed on %s, currently on %s", ScreenUserInfo, c.screen)
	}
	if session.ID == "" || session.User.Email == "" {
		return transitionErr("session requires an id and a selected identity")
	}
	c.session = session
	c.screen = ScreenDashboard
	return nil
}

// StartNewTest mints a fresh test id and clears any held draft before
// entering location capture. Stale drafts never leak into a new test.
func (c *Controller) StartNewTest() error {
	if c.screen != ScreenDashboard {
		return transitionErr("new test starts from %s, currently on %s", ScreenDashboard, c.screen)
	}
	c.draft = Draft{
		TestID:   record.NewTestID(c.now()),
		Metadata: record.NewMetadata(c.now()),
	}
	c.screen = ScreenGeoLocation
	return nil
}

// SetFix stores the resolved location on the draft. Allowed on the
// location screen only; re-running capture replaces the previous fix.
func (c *Controller) SetFix(fix record.GeoFix) error {
	if c.screen != ScreenGeoLocation {
		return transitionErr("location capture only on %s, currently on %s", ScreenGeoLocation, c.screen)
	}
	fix.Normalize()
	c.draft.Fix = &fix
	return nil
}

// ConfirmLocation advances to the metadata form. A fix must be held,
// even if it is the zeroed manual sentinel.
func (c *Controller) ConfirmLocation() error {
	if c.screen != ScreenGeoLocation {
		return transitionErr("cannot confirm location from %s", c.screen)
	}
	if c.draft.Fix == nil {
		return transitionErr("a location fix is required before metadata entry")
	}
	c.screen = ScreenMetadataForm
	return nil
}

// SetMetadata broadcasts the form's current field values into the
// controller-owned draft. Called on every edit so navigating away and
// back never loses in-progress values.
func (c *Controller) SetMetadata(meta record.Metadata) {
	c.draft.Metadata = &meta
}

// SubmitMetadata validates the required subset and advances. In edit
// mode the caller persists the patch (see Submitter.SubmitEdit) and then
// calls FinishEdit; the normal path continues to video selection.
func (c *Controller) SubmitMetadata() error {
	if c.screen != ScreenMetadataForm {
		return transitionErr("metadata submit only on %s, currently on %s", ScreenMetadataForm, c.screen)
	}
	if err := c.draft.Metadata.Validate(); err != nil {
		return err
	}
	if c.draft.EditMode {
		return nil
	}
	c.screen = ScreenVideoUpload
	return nil
}

// FinishEdit returns to history after an edit-mode patch has been
// persisted, dropping the draft.
func (c *Controller) FinishEdit() error {
	if c.screen != ScreenMetadataForm || !c.draft.EditMode {
		return transitionErr("not editing a test")
	}
	c.draft = Draft{}
	c.screen = ScreenHistory
	return nil
}

// SelectVideos stages picked files on the video screen, returning any
// per-file rejections. A batch with zero qualifying files leaves the
// previous selection untouched.
func (c *Controller) SelectVideos(paths []string) ([]ingest.Rejection, error) {
	if c.screen != ScreenVideoUpload {
		return nil, transitionErr("video selection only on %s, currently on %s", ScreenVideoUpload, c.screen)
	}
	rejected := c.draft.Files.Replace(paths)
	if c.draft.Files.Len() > 0 {
		c.draft.SkipVideos = false
	}
	return rejected, nil
}

// RemoveVideo drops one staged file by index.
func (c *Controller) RemoveVideo(index int) error {
	if c.screen != ScreenVideoUpload {
		return transitionErr("video selection only on %s, currently on %s", ScreenVideoUpload, c.screen)
	}
	return c.draft.Files.RemoveAt(index)
}

// ConfirmVideos advances to review. Requires at least one staged file
// or an explicit upload-later skip.
func (c *Controller) ConfirmVideos(uploadLater bool) error {
	if c.screen != ScreenVideoUpload {
		return transitionErr("cannot confirm videos from %s", c.screen)
	}
	if uploadLater {
		c.draft.Files.Clear()
		c.draft.SkipVideos = true
	} else if c.draft.Files.Len() == 0 {
		return transitionErr("select at least one video or choose to upload later")
	}
	c.screen = ScreenReviewSubmit
	return nil
}

// BuildRecord assembles the submission payload from the draft.
func (c *Controller) BuildRecord() record.TestRecord {
	user := c.session.User
	rec := record.TestRecord{
		TestID:    c.draft.TestID,
		SessionID: c.session.ID,
		User:      &user,
		Status:    record.StatusPending,
	}
	if c.draft.Fix != nil {
		fix := *c.draft.Fix
		rec.Geo = &fix
	}
	if c.draft.Metadata != nil {
		meta := *c.draft.Metadata
		rec.Metadata = &meta
	}
	return rec
}

// CompleteSubmission clears the draft after a successful submit and
// returns to the dashboard. A failed submit calls nothing: the review
// screen keeps full state for retry.
func (c *Controller) CompleteSubmission() error {
	if c.screen != ScreenReviewSubmit {
		return transitionErr("no submission in progress")
	}
	c.draft = Draft{}
	c.screen = ScreenDashboard
	return nil
}

// OpenHistory moves from the dashboard to the upload history.
func (c *Controller) OpenHistory() error {
	if c.screen != ScreenDashboard {
		return transitionErr("history opens from %s, currently on %s", ScreenDashboard, c.screen)
	}
	c.screen = ScreenHistory
	return nil
}

// EditTest enters the metadata form in edit mode, seeding the draft
// from an existing record.
func (c *Controller) EditTest(rec record.TestRecord) error {
	if c.screen != ScreenHistory {
		return transitionErr("editing starts from %s, currently on %s", ScreenHistory, c.screen)
	}
	if rec.TestID == "" {
		return transitionErr("record has no test id")
	}
	draft := Draft{TestID: rec.TestID, EditMode: true}
	if rec.Geo != nil {
		fix := *rec.Geo
		draft.Fix = &fix
	}
	if rec.Metadata != nil {
		meta := *rec.Metadata
		draft.Metadata = &meta
	} else {
		draft.Metadata = record.NewMetadata(c.now())
	}
	c.draft = draft
	c.screen = ScreenMetadataForm
	return nil
}

// Back navigates one screen toward the dashboard. Leaving the flow from
// the location screen abandons the draft entirely.
func (c *Controller) Back() error {
	switch c.screen {
	case ScreenGeoLocation:
		c.draft = Draft{}
		c.screen = ScreenDashboard
	case ScreenMetadataForm:
		if c.draft.EditMode {
			c.draft = Draft{}
			c.screen = ScreenHistory
			return nil
		}
		c.screen = ScreenGeoLocation
	case ScreenVideoUpload:
		c.screen = ScreenMetadataForm
	case ScreenReviewSubmit:
		c.screen = ScreenVideoUpload
	case ScreenHistory:
		c.screen = ScreenDashboard
	default:
		return transitionErr("cannot go back from %s", c.screen)
	}
	return nil
}
