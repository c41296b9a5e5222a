package domain

import "time"

// BlobRefPrefix marks a value as a blob store reference.
const BlobRefPrefix = "blob:"

type Blob struct {
	Ref         string    `json:"ref"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
