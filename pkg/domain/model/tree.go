package model

import (
	"encoding/json"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
)

// TrashFolderUUID marks the "Recently Deleted" folder in extraction output
const TrashFolderUUID = "TrashFolder-CloudKit"

// DocumentTree is the structured output of one extraction run. Notes are kept
// undecoded so a malformed entry only fails its own reconciliation step.
type DocumentTree struct {
	Version  json.RawMessage            `json:"version"`
	Notes    map[string]json.RawMessage `json:"notes"`
	Folders  map[string]Folder          `json:"folders"`
	Accounts map[string]json.RawMessage `json:"accounts"`
}

// Folder is the subset of folder fields the reconciler needs
type Folder struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// TrashFolderID returns the key of the trash folder, if the tree has one
func (t *DocumentTree) TrashFolderID() (string, bool) {
	if t == nil {
		return "", false
	}
	for id, folder := range t.Folders {
		if folder.UUID == TrashFolderUUID {
			return id, true
		}
	}
	return "", false
}

// IsEmpty reports whether the tree carries no notes
func (t *DocumentTree) IsEmpty() bool {
	return t == nil || len(t.Notes) == 0
}

// RawNote mirrors a note entry of the extraction output
type RawNote struct {
	AccountKey                 int64            `json:"account_key"`
	Account                    string           `json:"account"`
	FolderKey                  int64            `json:"folder_key"`
	Folder                     string           `json:"folder"`
	NoteID                     int64            `json:"note_id"`
	UUID                       string           `json:"uuid"`
	PrimaryKey                 int64            `json:"primary_key"`
	CreationTime               string           `json:"creation_time"`
	ModifyTime                 string           `json:"modify_time"`
	CloudKitCreatorID          string           `json:"cloudkit_creator_id"`
	CloudKitModifierID         string           `json:"cloudkit_modifier_id"`
	CloudKitLastModifiedDevice string           `json:"cloudkit_last_modified_device"`
	IsPinned                   bool             `json:"is_pinned"`
	IsPasswordProtected        bool             `json:"is_password_protected"`
	Title                      string           `json:"title"`
	Plaintext                  string           `json:"plaintext"`
	HTML                       string           `json:"html"`
	EmbeddedObjects            []EmbeddedObject `json:"embedded_objects"`
	Hashtags                   []string         `json:"hashtags"`
	Mentions                   []string         `json:"mentions"`
}

// DecodeRawNote decodes one note entry of a DocumentTree
func DecodeRawNote(data json.RawMessage) (*RawNote, error) {
	var note RawNote
	if err := json.Unmarshal(data, &note); err != nil {
		return nil, goerr.Wrap(err, "failed to decode note")
	}
	return &note, nil
}

// FolderID returns the folder key in the form used by DocumentTree.Folders
func (n *RawNote) FolderID() string {
	return strconv.FormatInt(n.FolderKey, 10)
}

// ToDocument builds and validates a Document from the raw entry
func (n *RawNote) ToDocument() (*Document, error) {
	created, err := ParseNoteTime(n.CreationTime)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid creation_time", goerr.V("uuid", n.UUID))
	}
	modified, err := ParseNoteTime(n.ModifyTime)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid modify_time", goerr.V("uuid", n.UUID))
	}

	doc := &Document{
		UUID:                       DocumentUUID(n.UUID),
		AccountKey:                 n.AccountKey,
		Account:                    n.Account,
		FolderKey:                  n.FolderKey,
		Folder:                     n.Folder,
		NoteID:                     n.NoteID,
		PrimaryKey:                 n.PrimaryKey,
		CreationTime:               created,
		ModifyTime:                 modified,
		CloudKitCreatorID:          n.CloudKitCreatorID,
		CloudKitModifierID:         n.CloudKitModifierID,
		CloudKitLastModifiedDevice: n.CloudKitLastModifiedDevice,
		IsPinned:                   n.IsPinned,
		IsPasswordProtected:        n.IsPasswordProtected,
		Title:                      n.Title,
		Plaintext:                  n.Plaintext,
		HTML:                       n.HTML,
		EmbeddedObjects:            n.EmbeddedObjects,
		Hashtags:                   n.Hashtags,
		Mentions:                   n.Mentions,
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}
