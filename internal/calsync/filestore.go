package calsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memocal/internal/ics"
	appLog "memocal/internal/log"
	"memocal/internal/model"
)

const fileExt = ".ics"

// FileStore keeps one calendar file per event in a directory. Device
// calendars import the files; the store itself never talks to them.
type FileStore struct {
	dir string
	loc *time.Location
}

// NewFileStore returns a store rooted at dir. Floating times read back by
// List are interpreted in loc (time.Local when nil).
func NewFileStore(dir string, loc *time.Location) *FileStore {
	if loc == nil {
		loc = time.Local
	}
	return &FileStore{dir: dir, loc: loc}
}

// Dir returns the export directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file backing remoteID.
func (s *FileStore) Path(remoteID string) string {
	return filepath.Join(s.dir, remoteID+fileExt)
}

// Create writes ev's calendar file. The remote id is derived from the
// event's UID, so exporting the same candidate twice overwrites one file.
func (s *FileStore) Create(_ context.Context, ev model.Event) (string, error) {
	id := ics.FileID(ev.ID())
	if err := s.write(id, ev); err != nil {
		return "", syncErr(OpCreate, model.TargetFile, err)
	}
	appLog.Info("calendar file exported", "event_id", ev.ID(), "path", s.Path(id))
	return id, nil
}

// Update rewrites the calendar file of remoteID.
func (s *FileStore) Update(_ context.Context, remoteID string, ev model.Event) error {
	if err := validID(remoteID); err != nil {
		return syncErr(OpUpdate, model.TargetFile, err)
	}
	return syncErr(OpUpdate, model.TargetFile, s.write(remoteID, ev))
}

// Delete removes the calendar file of remoteID. A missing file is not an
// error.
func (s *FileStore) Delete(_ context.Context, remoteID string) error {
	if err := validID(remoteID); err != nil {
		return syncErr(OpDelete, model.TargetFile, err)
	}
	err := os.Remove(s.Path(remoteID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return syncErr(OpDelete, model.TargetFile, err)
	}
	return nil
}

// List decodes every calendar file in the directory, expands recurrences
// and returns the occurrences inside [from, to]. Unreadable files are
// logged and skipped.
func (s *FileStore) List(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, syncErr(OpList, model.TargetFile, err)
	}

	var parsed []ics.ParsedEvent
	fileOf := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), fileExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, syncErr(OpList, model.TargetFile, err)
		}
		body, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			appLog.Error("calendar file read failed", err, "file", e.Name())
			continue
		}
		evs, err := ics.Decode(body, s.loc)
		if err != nil {
			appLog.Error("calendar file decode failed", err, "file", e.Name())
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		for _, ev := range evs {
			fileOf[ev.UID] = stem
		}
		parsed = append(parsed, evs...)
	}

	res, err := ics.Expand(parsed, ics.ExpandConfig{Location: s.loc, RangeStart: from, RangeEnd: to})
	if err != nil {
		return nil, syncErr(OpList, model.TargetFile, err)
	}

	out := make([]model.Event, 0, len(res.Occurrences))
	for _, o := range res.Occurrences {
		out = append(out, occurrenceEvent(o, fileOf[o.UID]))
	}
	return out, nil
}

func (s *FileStore) write(id string, ev model.Event) error {
	body, err := ics.Encode(ev)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	// Write to a temp file then rename, so importers never see a partial file.
	tmp, err := os.CreateTemp(s.dir, ".memocal-export-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(id)); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid file id %q", id)
	}
	return nil
}

func occurrenceEvent(o model.Occurrence, fileID string) model.Event {
	id := "file:" + o.UID + "#" + o.InstanceKey
	title := o.Summary
	if title == "" {
		title = "(無題)"
	}
	raw := ics.RawInputFromDescription(o.Description)
	if raw == "" {
		raw = o.Start.Format(rawDateLayout)
	}
	return model.Event{
		Candidate: model.EventCandidate{
			ID:              id,
			Title:           title,
			SourceText:      o.Summary,
			Start:           o.Start,
			End:             o.End,
			ReminderOffsets: o.ReminderOffsets,
		},
		Target:   model.TargetFile,
		RemoteID: fileID,
		RawInput: raw,
		Origin:   model.OriginRemote,
	}
}
