package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apperrors "github.com/jwalitptl/medtrack-api/pkg/errors"
)

const msgMalformedBody = "Malformed request body."

// BindJSON decodes the JSON body into obj. An empty body leaves obj
// untouched so that field validation reports what is missing. A value of
// the wrong JSON type is reported against its field.
func BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindWith(obj, binding.JSON); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperrors.Field(typeErr.Field, typeMessage(typeErr.Type))
		}
		return apperrors.BadRequest(msgMalformedBody, err)
	}
	return nil
}

func typeMessage(t reflect.Type) string {
	if t == nil {
		return "Incorrect type."
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "Not a valid string."
	case reflect.Bool:
		return "Must be a valid boolean."
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "A valid integer is required."
	case reflect.Float32, reflect.Float64:
		return "A valid number is required."
	case reflect.Slice, reflect.Array:
		return "Expected a list of items."
	default:
		return "Incorrect type."
	}
}

// Bind decodes a JSON, form or multipart body according to Content-Type.
func Bind(c *gin.Context, obj interface{}) error {
	if c.ContentType() == binding.MIMEJSON || c.ContentType() == "" {
		return BindJSON(c, obj)
	}
	if err := c.ShouldBind(obj); err != nil {
		return apperrors.BadRequest(msgMalformedBody, err)
	}
	return nil
}
