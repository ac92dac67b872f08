package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/yoockh/scribe/internal/api/middleware"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/storage"
	"github.com/yoockh/scribe/internal/utils"
)

type TranscriptionHandler struct {
	svc   services.TranscriptionService
	model string
	now   func() time.Time
}

func NewTranscriptionHandler(svc services.TranscriptionService, model string) *TranscriptionHandler {
	return &TranscriptionHandler{svc: svc, model: model, now: time.Now}
}

type TranscriptionResponse struct {
	ID        uint            `json:"id"`
	Filename  string          `json:"filename"`
	Text      string          `json:"text"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type GuestTranscriptionResponse struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Saved    bool   `json:"saved"`
}

type ListResponse struct {
	Items []TranscriptionResponse `json:"items"`
}

func toResponse(t models.Transcription) TranscriptionResponse {
	return TranscriptionResponse{
		ID:        t.ID,
		Filename:  t.Filename,
		Text:      t.Text,
		Metadata:  json.RawMessage(t.Metadata),
		CreatedAt: t.CreatedAt,
	}
}

func (h *TranscriptionHandler) Transcribe(c *gin.Context) {
	const op = "TranscriptionHandler.Transcribe"

	fh, err := c.FormFile("audio")
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file too large", err), "/")
		return
	}
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "no audio file uploaded", err), "/")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "could not read the uploaded file", err), "/")
		return
	}
	defer f.Close()

	userID, _ := currentUser(c)
	out, err := h.svc.Transcribe(c.Request.Context(), services.TranscribeInput{
		UserID:   userID,
		Filename: fh.Filename,
		Size:     fh.Size,
		Body:     f,
	})
	if err != nil {
		writeError(c, err, "/")
		return
	}

	if middleware.WantsHTML(c) {
		render(c, http.StatusOK, "result.html", gin.H{
			"Title":    "Transcription",
			"Filename": out.Filename,
			"Model":    h.model,
			"Text":     out.Text,
			"Saved":    out.Record != nil,
		})
		return
	}
	if out.Record != nil {
		c.JSON(http.StatusCreated, toResponse(*out.Record))
		return
	}
	c.JSON(http.StatusOK, GuestTranscriptionResponse{Filename: out.Filename, Text: out.Text})
}

func (h *TranscriptionHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rows, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "/")
		return
	}

	if middleware.WantsHTML(c) {
		render(c, http.StatusOK, "my.html", gin.H{"Title": "My transcriptions", "Items": rows})
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: lo.Map(rows, func(t models.Transcription, _ int) TranscriptionResponse {
		return toResponse(t)
	})})
}

func (h *TranscriptionHandler) Download(c *gin.Context) {
	const op = "TranscriptionHandler.Download"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(c, utils.E(utils.CodeNotFound, op, "transcription not found", err), "/my")
		return
	}

	row, err := h.svc.Get(c.Request.Context(), uint(id), userID)
	if err != nil {
		writeError(c, err, "/my")
		return
	}

	name := strings.TrimSuffix(row.Filename, "."+extension(row.Filename)) + ".txt"
	sendText(c, name, row.Text)
}

// DownloadText echoes the posted text back as a file, so guests can keep
// a result that was never stored.
func (h *TranscriptionHandler) DownloadText(c *gin.Context) {
	const op = "TranscriptionHandler.DownloadText"

	var text string
	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var body struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid JSON body", err), "/")
			return
		}
		text = body.Text
	} else {
		text = c.PostForm("text")
	}

	name := fmt.Sprintf("transcription_%s.txt", h.now().UTC().Format(storage.TimestampLayout))
	sendText(c, name, text)
}

func sendText(c *gin.Context, filename, text string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return name[i+1:]
}
