package model

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultEmbeddingDimension is the dimension of text-embedding-3-small vectors
const DefaultEmbeddingDimension = 1536

// DocumentUUID is the stable external identifier of a note. It is the only
// identity used for reconciliation.
type DocumentUUID string

// String returns the string representation of the uuid
func (u DocumentUUID) String() string {
	return string(u)
}

// EmbeddedObject is an attachment record carried through as-is from the source
type EmbeddedObject map[string]any

// Document is a note as persisted by the storage gateway. Values are treated
// as immutable: an update replaces the stored value with a new Document.
type Document struct {
	// ID is the storage row identifier, assigned on create
	ID int64

	UUID       DocumentUUID
	AccountKey int64
	Account    string
	FolderKey  int64
	Folder     string
	NoteID     int64
	PrimaryKey int64

	CreationTime time.Time
	ModifyTime   time.Time

	CloudKitCreatorID          string
	CloudKitModifierID         string
	CloudKitLastModifiedDevice string

	IsPinned            bool
	IsPasswordProtected bool

	Title     string
	Plaintext string
	HTML      string

	EmbeddedObjects []EmbeddedObject
	Hashtags        []string
	Mentions        []string
}

// Validate checks the fields required to persist a document
func (d *Document) Validate() error {
	if d.UUID == "" {
		return goerr.New("document uuid is required", goerr.V("title", d.Title))
	}
	if d.ModifyTime.IsZero() {
		return goerr.New("document modify_time is required", goerr.V("uuid", d.UUID))
	}
	if d.CreationTime.IsZero() {
		return goerr.New("document creation_time is required", goerr.V("uuid", d.UUID))
	}
	return nil
}

// IsNewerThan reports whether d was modified strictly after other. Equal
// timestamps are not newer.
func (d *Document) IsNewerThan(other *Document) bool {
	if other == nil {
		return true
	}
	return d.ModifyTime.After(other.ModifyTime)
}

// Clone returns a deep copy of d
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.EmbeddedObjects != nil {
		c.EmbeddedObjects = make([]EmbeddedObject, len(d.EmbeddedObjects))
		for i, obj := range d.EmbeddedObjects {
			c.EmbeddedObjects[i] = maps.Clone(obj)
		}
	}
	c.Hashtags = slices.Clone(d.Hashtags)
	c.Mentions = slices.Clone(d.Mentions)
	return &c
}

// JoinTags encodes a tag set the way it is stored: comma separated
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// SplitTags decodes a stored tag set, dropping empty entries
func SplitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
