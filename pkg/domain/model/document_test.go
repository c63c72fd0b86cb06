package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/notelens/pkg/domain/model"
)

func newDocument(uuid string, modified time.Time) *model.Document {
	return &model.Document{
		UUID:            model.DocumentUUID(uuid),
		Title:           "title " + uuid,
		Plaintext:       "body " + uuid,
		CreationTime:    modified.Add(-time.Hour),
		ModifyTime:      modified,
		Hashtags:        []string{"work", "todo"},
		EmbeddedObjects: []model.EmbeddedObject{{"type": "table"}},
	}
}

func TestDocument_IsNewerThan(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("strictly later is newer", func(t *testing.T) {
		gt.Bool(t, newDocument("a", base.Add(time.Second)).IsNewerThan(newDocument("a", base))).True()
	})

	t.Run("equal timestamps are not newer", func(t *testing.T) {
		gt.Bool(t, newDocument("a", base).IsNewerThan(newDocument("a", base))).False()
	})

	t.Run("same instant in another zone is not newer", func(t *testing.T) {
		tokyo := base.In(time.FixedZone("JST", 9*60*60))
		gt.Bool(t, newDocument("a", tokyo).IsNewerThan(newDocument("a", base))).False()
	})

	t.Run("earlier is not newer", func(t *testing.T) {
		gt.Bool(t, newDocument("a", base).IsNewerThan(newDocument("a", base.Add(time.Minute)))).False()
	})
}

func TestDocument_Clone(t *testing.T) {
	doc := newDocument("a", time.Now())
	c := doc.Clone()

	c.Hashtags[0] = "changed"
	c.EmbeddedObjects[0]["type"] = "image"

	gt.Value(t, doc.Hashtags[0]).Equal("work")
	gt.Value(t, doc.EmbeddedObjects[0]["type"]).Equal("table")
}

func TestDocument_Validate(t *testing.T) {
	now := time.Now()

	gt.NoError(t, newDocument("a", now).Validate())

	missingUUID := newDocument("", now)
	gt.Error(t, missingUUID.Validate())

	missingTime := newDocument("b", now)
	missingTime.ModifyTime = time.Time{}
	gt.Error(t, missingTime.Validate())
}

func TestTags(t *testing.T) {
	gt.Value(t, model.JoinTags([]string{"a", "b"})).Equal("a,b")
	gt.Array(t, model.SplitTags(" a, ,b ,")).Equal([]string{"a", "b"})
	gt.Array(t, model.SplitTags("")).Length(0)
}

func TestParseNoteTime(t *testing.T) {
	t.Run("extraction tool layout", func(t *testing.T) {
		got, err := model.ParseNoteTime("2024-03-01 12:30:45 +0900")
		gt.NoError(t, err).Required()
		gt.Value(t, got.UTC()).Equal(time.Date(2024, 3, 1, 3, 30, 45, 0, time.UTC))
	})

	t.Run("RFC 3339", func(t *testing.T) {
		got, err := model.ParseNoteTime("2024-03-01T12:30:45.5+00:00")
		gt.NoError(t, err).Required()
		gt.Value(t, got.UTC()).Equal(time.Date(2024, 3, 1, 12, 30, 45, 500000000, time.UTC))
	})

	t.Run("unknown layout", func(t *testing.T) {
		_, err := model.ParseNoteTime("March 1st")
		gt.Error(t, err).Is(model.ErrInvalidTimestamp)
	})
}
