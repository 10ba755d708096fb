package dto

type GenerateClipsRequest struct {
	VideoPath string `json:"video_path" binding:"required"`
}

type GenerateClipsResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ClipMetadataDTO struct {
	Filename    string  `json:"filename"`
	StartOffset float64 `json:"start_offset"`
	EndOffset   float64 `json:"end_offset"`
	Duration    float64 `json:"duration"`
	DownloadURL string  `json:"download_url"`
}

type JobStatusResponse struct {
	JobID           string            `json:"job_id"`
	Status          string            `json:"status"`
	ProgressMessage string            `json:"progress_message"`
	GeneratedClips  []ClipMetadataDTO `json:"generated_clips"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
	CompletedAt     string            `json:"completed_at,omitempty"`
}

type DeleteJobResponse struct {
	JobID        string `json:"job_id"`
	FilesRemoved int    `json:"files_removed"`
}
