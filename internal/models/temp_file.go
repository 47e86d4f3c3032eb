package models

import "time"

// TempFile represents the on-disk copy of an uploaded document that lives for
// exactly one document request.
type TempFile struct {
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"stored_path"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}
