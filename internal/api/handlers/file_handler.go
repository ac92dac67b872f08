package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/scribe/internal/services"
	"github.com/yoockh/scribe/internal/storage"
	"github.com/yoockh/scribe/internal/utils"
)

type FileHandler struct {
	store       storage.Store
	svc         services.TranscriptionService
	requireAuth bool
}

// NewFileHandler serves stored uploads. With requireAuth only the owner of a
// transcription made from the file may fetch it.
func NewFileHandler(store storage.Store, svc services.TranscriptionService, requireAuth bool) *FileHandler {
	return &FileHandler{store: store, svc: svc, requireAuth: requireAuth}
}

func (h *FileHandler) Upload(c *gin.Context) {
	const op = "FileHandler.Upload"
	notFound := utils.E(utils.CodeNotFound, op, "file not found", nil)

	name := c.Param("name")
	if !storage.ValidName(name) {
		writeError(c, notFound, "/")
		return
	}

	ctx := c.Request.Context()
	if h.requireAuth {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		owns, err := h.svc.OwnsFile(ctx, userID, name)
		if err != nil {
			writeError(c, err, "/")
			return
		}
		if !owns {
			writeError(c, notFound, "/")
			return
		}
	}

	obj, err := h.store.Open(ctx, name)
	if errors.Is(err, utils.ErrNotFound) {
		writeError(c, notFound, "/")
		return
	}
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open file", err), "/")
		return
	}
	defer obj.Close()

	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, ctype, obj, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, name),
	})
}
