package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"fieldcap/internal/client"
	"fieldcap/internal/ingest"
	"fieldcap/internal/record"
)

type fakeAPI struct {
	calls      []string
	createErr  error
	updateErr  error
	uploadErr  map[string]error
	lastRecord record.TestRecord
}

func (f *fakeAPI) CreateOrUpdateTest(ctx context.Context, rec record.TestRecord) (string, error) {
	f.calls = append(f.calls, "create:"+rec.TestID)
	f.lastRecord = rec
	if f.createErr != nil {
		return "", f.createErr
	}
	return rec.TestID, nil
}

func (f *fakeAPI) UpdateTest(ctx context.Context, id string, patch record.TestRecord) error {
	f.calls = append(f.calls, "update:"+id)
	f.lastRecord = patch
	return f.updateErr
}

func (f *fakeAPI) UploadVideo(ctx context.Context, testID, path, contentType string) (client.UploadResult, error) {
	f.calls = append(f.calls, "upload:"+path)
	if err := f.uploadErr[path]; err != nil {
		return client.UploadResult{}, err
	}
	return client.UploadResult{FileName: testID + "/" + path}, nil
}

func stagedFiles(names ...string) []ingest.File {
	files := make([]ingest.File, 0, len(names))
	for _, name := range names {
		files = append(files, ingest.File{Path: name, Name: name, Size: 1024, Type: "video/mp4"})
	}
	return files
}

func TestSubmitSavesThenUploadsInOrder(t *testing.T) {
	api := &fakeAPI{}
	var milestones []string
	progress := func(percent int, step string) {
		milestones = append(milestones, fmt.Sprintf("%d:%s", percent, step))
	}

	err := NewSubmitter(api).Submit(context.Background(),
		record.TestRecord{TestID: "test-1000-abc"},
		stagedFiles("a.mp4", "b.mp4"), progress)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := []string{"create:test-1000-abc", "upload:a.mp4", "upload:b.mp4"}
	if strings.Join(api.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", api.calls, want)
	}
	if milestones[0] != "10:saving test record" {
		t.Errorf("first milestone = %q", milestones[0])
	}
	if last := milestones[len(milestones)-1]; last != "100:done" {
		t.Errorf("last milestone = %q", last)
	}
	if len(milestones) != 4 {
		t.Errorf("milestones = %v, want one per step", milestones)
	}
}

func TestSubmitWithoutFiles(t *testing.T) {
	api := &fakeAPI{}
	err := NewSubmitter(api).Submit(context.Background(),
		record.TestRecord{TestID: "test-1000-abc"}, nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(api.calls) != 1 {
		t.Errorf("calls = %v, want the record save only", api.calls)
	}
}

func TestSubmitAbortsOnFailedUpload(t *testing.T) {
	api := &fakeAPI{uploadErr: map[string]error{"a.mp4": errors.New("connection reset")}}
	err := NewSubmitter(api).Submit(context.Background(),
		record.TestRecord{TestID: "test-1000-abc"},
		stagedFiles("a.mp4", "b.mp4"), nil)
	if err == nil || !strings.Contains(err.Error(), "a.mp4") {
		t.Fatalf("err = %v, want the failing file named", err)
	}
	for _, call := range api.calls {
		if call == "upload:b.mp4" {
			t.Errorf("upload continued past a failure: %v", api.calls)
		}
	}
}

func TestSubmitEditPatchesExistingRecord(t *testing.T) {
	api := &fakeAPI{}
	err := NewSubmitter(api).SubmitEdit(context.Background(), record.TestRecord{TestID: "test-1000-abc"})
	if err != nil {
		t.Fatalf("SubmitEdit: %v", err)
	}
	if strings.Join(api.calls, ",") != "update:test-1000-abc" {
		t.Errorf("calls = %v", api.calls)
	}
}

func TestSubmitEditRecreatesMissingRecord(t *testing.T) {
	api := &fakeAPI{updateErr: fmt.Errorf("test: %w", client.ErrNotFound)}
	err := NewSubmitter(api).SubmitEdit(context.Background(), record.TestRecord{TestID: "test-1000-abc"})
	if err != nil {
		t.Fatalf("SubmitEdit: %v", err)
	}
	want := "update:test-1000-abc,create:test-1000-abc"
	if strings.Join(api.calls, ",") != want {
		t.Errorf("calls = %v, want %s", api.calls, want)
	}
}

func TestSubmitEditSurfacesOtherErrors(t *testing.T) {
	api := &fakeAPI{updateErr: errors.New("backend down")}
	err := NewSubmitter(api).SubmitEdit(context.Background(), record.TestRecord{TestID: "test-1000-abc"})
	if err == nil || !strings.Contains(err.Error(), "backend down") {
		t.Fatalf("err = %v", err)
	}
	if len(api.calls) != 1 {
		t.Errorf("create attempted despite a non-404 failure: %v", api.calls)
	}
}
