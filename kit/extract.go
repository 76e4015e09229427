package kit

import (
	"encoding"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// FromRoute reads a route parameter into dst.
func FromRoute[T any](c echo.Context, name string, dst *T) error {
	return bindValue(echo.PathParamsBinder(c), name, dst)
}

// FromQuery reads a query parameter into dst. A missing parameter leaves
// dst untouched.
func FromQuery[T any](c echo.Context, name string, dst *T) error {
	return bindValue(echo.QueryParamsBinder(c), name, dst)
}

// FromHeader reads a request header into dst. Header names are matched
// case-insensitively.
func FromHeader[T any](c echo.Context, name string, dst *T) error {
	header := c.Request().Header
	b := &echo.ValueBinder{
		ValueFunc: func(sourceParam string) string {
			return header.Get(sourceParam)
		},
		ValuesFunc: func(sourceParam string) []string {
			return header.Values(sourceParam)
		},
		ErrorFunc: func(sourceParam string, values []string, message interface{}, internalError error) error {
			return echo.NewBindingError(sourceParam, values, message, internalError)
		},
	}
	return bindValue(b, name, dst)
}

func bindValue[T any](b *echo.ValueBinder, name string, dst *T) error {
	switch d := any(dst).(type) {
	case *string:
		b.String(name, d)
	case *[]string:
		b.Strings(name, d)
	case *int:
		b.Int(name, d)
	case *[]int:
		b.Ints(name, d)
	case *int8:
		b.Int8(name, d)
	case *int16:
		b.Int16(name, d)
	case *int32:
		b.Int32(name, d)
	case *int64:
		b.Int64(name, d)
	case *[]int64:
		b.Int64s(name, d)
	case *uint:
		b.Uint(name, d)
	case *uint8:
		b.Uint8(name, d)
	case *uint16:
		b.Uint16(name, d)
	case *uint32:
		b.Uint32(name, d)
	case *uint64:
		b.Uint64(name, d)
	case *bool:
		b.Bool(name, d)
	case *[]bool:
		b.Bools(name, d)
	case *float32:
		b.Float32(name, d)
	case *float64:
		b.Float64(name, d)
	case *[]float64:
		b.Float64s(name, d)
	case *time.Duration:
		b.Duration(name, d)
	case encoding.TextUnmarshaler:
		b.TextUnmarshaler(name, d)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "unsupported parameter type "+reflect.TypeFor[T]().String()+" for "+name)
	}
	return b.BindError()
}

// FromBody binds the request body into dst. JSON, XML and url-encoded
// bodies go through echo's body binder. Multipart bodies fill the Fields
// and Files members of a MultiPartForm shaped struct.
func FromBody(c echo.Context, dst any) error {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		return (&echo.DefaultBinder{}).BindBody(c, dst)
	}

	v := reflect.ValueOf(dst)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return echo.NewHTTPError(http.StatusInternalServerError, "nil body destination")
		}
		v = v.Elem()
	}
	fields, files := v.FieldByName("Fields"), v.FieldByName("Files")
	if v.Kind() != reflect.Struct || !fields.IsValid() || !files.IsValid() {
		return (&echo.DefaultBinder{}).BindBody(c, dst)
	}

	if fields.CanAddr() {
		if err := (&echo.DefaultBinder{}).BindBody(c, fields.Addr().Interface()); err != nil {
			return err
		}
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return bindFiles(files, form)
}

var (
	fileHeaderType = reflect.TypeOf((*multipart.FileHeader)(nil))
	fileUploadType = reflect.TypeOf(FileUpload{})
)

func bindFiles(dst reflect.Value, form *multipart.Form) error {
	if dst.Kind() != reflect.Struct {
		return nil
	}
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := fieldName(sf)
		headers := form.File[name]
		if len(headers) == 0 {
			continue
		}
		f := dst.Field(i)
		switch {
		case sf.Type == fileHeaderType:
			f.Set(reflect.ValueOf(headers[0]))
		case sf.Type == fileUploadType:
			f.Set(reflect.ValueOf(newFileUpload(headers[0])))
		case sf.Type == reflect.PointerTo(fileUploadType):
			u := newFileUpload(headers[0])
			f.Set(reflect.ValueOf(&u))
		case sf.Type.Kind() == reflect.Slice && sf.Type.Elem() == fileHeaderType:
			f.Set(reflect.ValueOf(headers))
		case sf.Type.Kind() == reflect.Slice && sf.Type.Elem() == fileUploadType:
			uploads := make([]FileUpload, len(headers))
			for n, h := range headers {
				uploads[n] = newFileUpload(h)
			}
			f.Set(reflect.ValueOf(uploads))
		}
	}
	return nil
}

func fieldName(sf reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		if name, _, _ := strings.Cut(sf.Tag.Get(tag), ","); name != "" && name != "-" {
			return name
		}
	}
	return sf.Name
}
