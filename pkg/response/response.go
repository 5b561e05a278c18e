package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Machine-readable error codes the client can branch on (beyond HTTP status).
const (
	CodeNotQualified          = "NOT_QUALIFIED"
	CodeVerificationRequired  = "VERIFICATION_REQUIRED"
	CodeNoPendingVerification = "NO_PENDING_VERIFICATION"
	CodeAlreadyVerified       = "ALREADY_VERIFIED"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeTokenUsed             = "TOKEN_USED"
	CodeMarketForbidden       = "MARKET_FORBIDDEN"
	CodeProviderError         = "PROVIDER_ERROR"
	CodeFeatureUnavailable    = "FEATURE_UNAVAILABLE"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// BadRequestCode sends 400 with error message and a machine-readable code.
func BadRequestCode(c *gin.Context, err, code string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Code: code})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// UnauthorizedCode sends 401 with a machine-readable code.
func UnauthorizedCode(c *gin.Context, err, code string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err, Code: code})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// ForbiddenCode sends 403 with a machine-readable code.
func ForbiddenCode(c *gin.Context, err, code string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err, Code: code})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err, Code: CodeFeatureUnavailable})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}
