package api

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/orgtree"
	"go.uber.org/zap"
)

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// writeError turns err into the JSON error body. ServiceErrors carry their
// own status and code; anything unexpected is logged and reported as a
// bare 500.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var svcErr *orgtree.ServiceError
	if errors.As(err, &svcErr) {
		body := gin.H{"error": svcErr.Message, "code": svcErr.Code}
		if svcErr.Details != nil {
			body["details"] = svcErr.Details
		}
		c.JSON(svcErr.Status, body)
		return
	}

	logger.Error("request failed",
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
}

func writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": orgtree.CodeInvalidBody})
}

// bindJSON decodes the body into req. Binding failures are answered with
// a 400 listing the offending fields, and false is returned.
func bindJSON(c *gin.Context, req any) bool {
	return handleBindError(c, c.ShouldBindJSON(req))
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if errors.Is(err, io.EOF) {
		return true
	}
	return handleBindError(c, err)
}

func handleBindError(c *gin.Context, err error) bool {
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"code":    orgtree.CodeInvalidBody,
			"details": fields,
		})
		return false
	}
	writeBadRequest(c, "malformed request body")
	return false
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		writeBadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// useJSONFieldNames makes validation errors report the json name of a
// field instead of the Go one.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}
