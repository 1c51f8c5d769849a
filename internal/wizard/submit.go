package wizard

import (
	"context"
	"errors"
	"fmt"

	"fieldcap/internal/client"
	"fieldcap/internal/ingest"
	"fieldcap/internal/record"
)

// API is the slice of the daemon client the submission flows need.
type API interface {
	CreateOrUpdateTest(ctx context.Context, rec record.TestRecord) (string, error)
	UpdateTest(ctx context.Context, id string, patch record.TestRecord) error
	UploadVideo(ctx context.Context, testID, path, contentType string) (client.UploadResult, error)
}

// Progress reports coarse submission milestones as whole percentages.
// Nil callbacks are allowed.
type Progress func(percent int, step string)

// Submitter runs the two network flows the wizard needs: the full
// review-screen submission and the edit-mode metadata patch.
type Submitter struct {
	api API
}

func NewSubmitter(api API) *Submitter {
	return &Submitter{api: api}
}

// Submit persists the record, then uploads each staged file. Any
// failing step aborts and surfaces the error; the caller leaves the
// draft intact so the same action can be retried.
func (s *Submitter) Submit(ctx context.Context, rec record.TestRecord, files []ingest.File, progress Progress) error {
	report := func(percent int, step string) {
		if progress != nil {
			progress(percent, step)
		}
	}

	report(10, "saving test record")
	if _, err := s.api.CreateOrUpdateTest(ctx, rec); err != nil {
		return fmt.Errorf("save test record: %w", err)
	}

	if len(files) == 0 {
		report(100, "done")
		return nil
	}

	// Remaining 90% split evenly across files.
	for i, file := range files {
		report(10+90*i/len(files), fmt.Sprintf("uploading %s", file.Name))
		if _, err := s.api.UploadVideo(ctx, rec.TestID, file.Path, file.Type); err != nil {
			return fmt.Errorf("upload %s: %w", file.Name, err)
		}
	}
	report(100, "done")
	return nil
}

// SubmitEdit persists an edit-mode metadata patch. An update that finds
// no record on the daemon transparently retries as a create with the
// held user/geo/metadata state; only then does the edit count as saved.
func (s *Submitter) SubmitEdit(ctx context.Context, rec record.TestRecord) error {
	err := s.api.UpdateTest(ctx, rec.TestID, rec)
	if err == nil {
		return nil
	}
	if !errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("update test: %w", err)
	}
	if _, err := s.api.CreateOrUpdateTest(ctx, rec); err != nil {
		return fmt.Errorf("recreate test after missing update target: %w", err)
	}
	return nil
}
