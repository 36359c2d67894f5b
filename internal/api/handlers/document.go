package handlers

import (
	"errors"
	"io"
	"net/http"

	"studybuddy/internal/ingest"
	"studybuddy/internal/models"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left in an upload body for the multipart
// boundaries and part headers around the file.
const multipartOverhead = 16 << 10

type ViewRequest struct {
	View models.View `json:"view" binding:"required"`
}

type VoiceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// HandleUploadDocument ingests and summarizes the multipart "file" field.
func (h *Handler) HandleUploadDocument(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		limit := h.MaxUploadBytes + multipartOverhead
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: MsgFileTooLarge})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	fileHeader, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: MsgFileTooLarge})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: "No file uploaded."})
		return
	}
	if h.MaxUploadBytes > 0 && fileHeader.Size > h.MaxUploadBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: MsgFileTooLarge})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err, MsgProcessFailed)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.respondError(c, err, MsgProcessFailed)
		return
	}

	sess := h.session(c)
	_, err = h.Service.Upload(c.Request.Context(), sess, ingest.File{
		Name:     fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		h.respondError(c, err, MsgProcessFailed)
		return
	}
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// HandleGetState returns the session snapshot.
func (h *Handler) HandleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.peekSession(c).Snapshot())
}

// HandleNewSession unloads the document so another can be uploaded.
func (h *Handler) HandleNewSession(c *gin.Context) {
	sess := h.session(c)
	sess.NewSession()
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *Handler) HandleSetView(c *gin.Context) {
	var req ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgBadRequest})
		return
	}
	sess := h.session(c)
	if err := sess.Navigate(req.View); err != nil {
		h.respondError(c, err, MsgBadRequest)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// HandleSetVoice toggles reading answers aloud.
func (h *Handler) HandleSetVoice(c *gin.Context) {
	var req VoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgBadRequest})
		return
	}
	sess := h.session(c)
	sess.SetVoice(*req.Enabled)
	c.JSON(http.StatusOK, sess.Snapshot())
}
