package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// VideoStatus is the moderation state of a video. Only verified videos are searchable.
type VideoStatus string

// Video moderation states.
const (
	VideoStatusPending  VideoStatus = "pending"
	VideoStatusVerified VideoStatus = "verified"
	VideoStatusRejected VideoStatus = "rejected"
)

// UploaderSummary is the public profile of whoever uploaded a video.
type UploaderSummary struct {
	AvatarURL   *string `json:"avatar_url,omitempty"`
	DisplayName string  `json:"display_name"`
	Role        string  `json:"role,omitempty"`
}

// Video is the read-only projection of a video row used by search and embedding.
type Video struct {
	ID          uuid.UUID       `json:"id"`
	URL         string          `json:"video_url"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	Region      string          `json:"region"`
	Status      VideoStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Uploader    UploaderSummary `json:"uploader"`
	Embedding   []float32       `json:"-"`
}

// EmbeddingText returns the text that represents the video in the vector index:
// title, description and tags joined by newlines, skipping empty parts.
func (v *Video) EmbeddingText() string {
	parts := make([]string, 0, 3)

	if s := strings.TrimSpace(v.Title); s != "" {
		parts = append(parts, s)
	}

	if s := strings.TrimSpace(v.Description); s != "" {
		parts = append(parts, s)
	}

	if len(v.Tags) > 0 {
		tags := strings.TrimSpace(strings.Join(v.Tags, ", "))
		if tags != "" {
			parts = append(parts, tags)
		}
	}

	return strings.Join(parts, "\n")
}

// Candidate converts the video to its ranking projection.
func (v *Video) Candidate() Candidate {
	return Candidate{
		ID:          v.ID,
		URL:         v.URL,
		Title:       v.Title,
		Description: v.Description,
		Tags:        v.Tags,
		Region:      v.Region,
		CreatedAt:   v.CreatedAt,
		Uploader:    v.Uploader,
	}
}
