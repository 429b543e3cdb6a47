package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/i18n"
)

const catalogKey = "i18n_catalog"

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *ErrorBody             `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// ErrorBody is the wire form of a rejected operation: a stable code plus a localized message.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Localizer stores the message catalog on the request so Error can translate messages.
func Localizer(catalog *i18n.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		if catalog != nil {
			c.Set(catalogKey, catalog)
		}
		c.Next()
	}
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		// the request logger reports c.Errors, keeping the cause out of the body
		_ = c.Error(appErr)
	}
	body := &ErrorBody{Code: appErr.Code, Message: appErr.Message}
	if value, ok := c.Get(catalogKey); ok {
		if catalog, ok := value.(*i18n.Catalog); ok {
			body.Message = catalog.Message(c.GetHeader("Accept-Language"), appErr.Code, appErr.Message)
			body.Fields = catalog.FieldErrors(appErr.Err)
		}
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: body})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
