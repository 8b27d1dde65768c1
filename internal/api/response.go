package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// envelope is the uniform response wrapper: data on success, a message on
// failure.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respond(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, msg)
}

func notFound(c *gin.Context, msg string) {
	fail(c, http.StatusNotFound, msg)
}

func internalError(c *gin.Context, msg string) {
	fail(c, http.StatusInternalServerError, msg)
}
