package models

import "time"

type GenerationStatus string

const (
	GenerationStarting   GenerationStatus = "starting"
	GenerationProcessing GenerationStatus = "processing"
	GenerationSucceeded  GenerationStatus = "succeeded"
	GenerationFailed     GenerationStatus = "failed"
	GenerationCanceled   GenerationStatus = "canceled"
)

// Terminal reports whether the status can no longer change.
func (s GenerationStatus) Terminal() bool {
	return s == GenerationSucceeded || s == GenerationFailed || s == GenerationCanceled
}

// Generation is one user-initiated image-generation request. The ID is
// minted locally before the inference provider is called.
type Generation struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Status      GenerationStatus `json:"status"`
	RoomType    string           `json:"room_type"`
	Theme       string           `json:"theme"`
	Quality     string           `json:"quality"`
	Prompt      string           `json:"prompt"`
	OutputURLs  []string         `json:"output_urls,omitempty"`
	Error       string           `json:"error,omitempty"`
	SourcePath  string           `json:"source_path,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}
