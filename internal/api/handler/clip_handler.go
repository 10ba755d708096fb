package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/clipper-be/internal/api/dto"
	"github.com/cuongbtq/clipper-be/internal/clip/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateClips handles POST /api/v1/clips/generate
// Creates a PENDING job record and enqueues it for the worker service.
// Returns 202 immediately; the pipeline runs in the background.
func (h *ClipHandler) GenerateClips(c *gin.Context) {
	var req dto.GenerateClipsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "video_path is required",
		})
		return
	}

	now := time.Now()
	job := domain.Job{
		JobID:           uuid.New().String(),
		Status:          domain.JobStatusPending,
		ProgressMessage: "Waiting for processing",
		InputRef:        req.VideoPath,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.store.Create(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create clip generation job",
		})
		return
	}

	body, err := json.Marshal(map[string]string{"job_id": job.JobID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create clip generation job",
		})
		return
	}

	if err := h.queue.Publish(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue clip generation job",
		})
		return
	}

	h.logger.Info("Clip generation job created",
		slog.String("job_id", job.JobID),
		slog.String("input_ref", req.VideoPath),
	)

	c.JSON(http.StatusAccepted, dto.GenerateClipsResponse{
		JobID:   job.JobID,
		Status:  job.Status,
		Message: "Clip generation job queued successfully. Use /status/{job_id} to check progress.",
	})
}

// GetJobStatus handles GET /api/v1/clips/status/:job_id
// Returns the full job snapshot. A FAILED job is still inspectable: the
// recorded error message comes back with a 200.
func (h *ClipHandler) GetJobStatus(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, jobToStatusResponse(job))
}

// DownloadClip handles GET /api/v1/clips/:job_id/clips/:index
// Streams a single artifact file with its detected content type.
func (h *ClipHandler) DownloadClip(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	var index int
	if _, err := fmt.Sscanf(c.Param("index"), "%d", &index); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "index must be an integer",
		})
		return
	}

	clip, err := h.artifacts.Fetch(job, index)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIndexOutOfRange):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("clip index %d out of range", index),
			})
		case errors.Is(err, domain.ErrArtifactMissing):
			c.JSON(http.StatusGone, gin.H{
				"error": "clip file is no longer available",
			})
		default:
			h.logger.Error("Failed to fetch clip",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to fetch clip",
			})
		}
		return
	}

	contentType := "video/mp4"
	if m, err := mimetype.DetectFile(clip.StoragePath); err == nil {
		contentType = m.String()
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clip.Filename))
	c.Header("Content-Type", contentType)
	c.File(clip.StoragePath)
}

// DownloadAll handles GET /api/v1/clips/:job_id/download
// Streams every artifact of a COMPLETED job as a single zip archive.
func (h *ClipHandler) DownloadAll(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.Status != domain.JobStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("job is %s, clips are only available once completed", job.Status),
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "clips_"+job.JobID+".zip"))
	c.Header("Content-Type", "application/zip")
	c.Status(http.StatusOK)

	if err := h.artifacts.Bundle(job.JobID, job.Results, c.Writer); err != nil {
		// Headers are gone by now; all we can do is cut the stream short.
		h.logger.Error("Failed to bundle clips",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.Abort()
	}
}

// DeleteJob handles DELETE /api/v1/clips/:job_id
// Removes every file the job owns, then the job record, and reports the
// number of files removed.
func (h *ClipHandler) DeleteJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	removed := h.artifacts.DeleteAll(job)

	if err := h.store.Delete(c.Request.Context(), job.JobID); err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		h.logger.Error("Failed to delete job record",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job",
		})
		return
	}

	h.logger.Info("Job deleted",
		slog.String("job_id", job.JobID),
		slog.Int("files_removed", removed),
	)

	c.JSON(http.StatusOK, dto.DeleteJobResponse{
		JobID:        job.JobID,
		FilesRemoved: removed,
	})
}

// loadJob validates the job_id parameter and loads the job, writing the
// error response itself when that fails.
func (h *ClipHandler) loadJob(c *gin.Context) (*domain.Job, bool) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return nil, false
	}

	job, err := h.store.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": fmt.Sprintf("Job %s not found", jobID),
			})
			return nil, false
		}

		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve job",
		})
		return nil, false
	}

	return job, true
}

func jobToStatusResponse(job *domain.Job) dto.JobStatusResponse {
	clips := make([]dto.ClipMetadataDTO, len(job.Results))
	for i, a := range job.Results {
		clips[i] = dto.ClipMetadataDTO{
			Filename:    a.Filename,
			StartOffset: a.StartOffset,
			EndOffset:   a.EndOffset,
			Duration:    a.Duration,
			DownloadURL: fmt.Sprintf("/api/v1/clips/%s/clips/%d", job.JobID, i),
		}
	}

	resp := dto.JobStatusResponse{
		JobID:           job.JobID,
		Status:          job.Status,
		ProgressMessage: job.ProgressMessage,
		GeneratedClips:  clips,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
