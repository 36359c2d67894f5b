package handlers

import (
	"errors"
	"net/http"

	"studybuddy/internal/models"
	"studybuddy/internal/study"

	"github.com/gin-gonic/gin"
)

// SubmitQuizRequest maps question index to the chosen option.
type SubmitQuizRequest struct {
	Answers map[int]string `json:"answers"`
}

// HandleGenerateQuiz generates a quiz from the loaded document.
func (h *Handler) HandleGenerateQuiz(c *gin.Context) {
	sess := h.session(c)
	state, err := h.Service.StartQuiz(c.Request.Context(), sess)
	if errors.Is(err, study.ErrNoDocument) {
		c.AbortWithStatusJSON(http.StatusConflict, models.ErrorResponse{Error: MsgQuizNoDocument})
		return
	}
	if err != nil {
		h.respondError(c, err, MsgQuizFailed)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// HandleGetQuiz returns the current quiz without its answers.
func (h *Handler) HandleGetQuiz(c *gin.Context) {
	state, err := h.peekSession(c).Quiz()
	if err != nil {
		h.respondError(c, err, MsgQuizFailed)
		return
	}
	c.JSON(http.StatusOK, state)
}

// HandleSubmitQuiz grades the answers. Unanswered questions count as wrong.
func (h *Handler) HandleSubmitQuiz(c *gin.Context) {
	var req SubmitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgBadRequest})
		return
	}
	result, err := h.Service.SubmitQuiz(h.session(c), req.Answers)
	if err != nil {
		h.respondError(c, err, MsgQuizFailed)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleFinishQuiz records the graded quiz and returns to chat.
func (h *Handler) HandleFinishQuiz(c *gin.Context) {
	result, err := h.Service.FinishQuiz(h.session(c))
	if err != nil {
		h.respondError(c, err, MsgQuizFailed)
		return
	}
	c.JSON(http.StatusOK, result)
}
