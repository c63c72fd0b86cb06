package config

import (
	"os"
	"path/filepath"
)

const appName = "NoteLens"

// appSupportDir is the per-user application data directory
func appSupportDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Library", "Application Support", appName)
}

// DefaultDBPath is where the vector database is kept
func DefaultDBPath() string {
	return filepath.Join(appSupportDir(), "notelens.db")
}

// DefaultTempDir is the parent of extraction workspaces
func DefaultTempDir() string {
	return filepath.Join(appSupportDir(), "temp")
}

// DefaultParserScript is the bundled apple_cloud_notes_parser entry point
func DefaultParserScript() string {
	return filepath.Join(appSupportDir(), "apple_cloud_notes_parser", "notes_cloud_ripper.rb")
}

// DefaultNotesDB is the Apple Notes database of the current user
func DefaultNotesDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "NoteStore.sqlite"
	}
	return filepath.Join(home, "Library", "Group Containers", "group.com.apple.notes", "NoteStore.sqlite")
}
