package models

import "time"

// Asset is a content-addressed binary blob. The hash uniquely determines the
// content; duplicate uploads reuse the same row.
type Asset struct {
	ID          int64     `json:"id"`
	Hash        string    `json:"hash"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
