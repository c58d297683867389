// Package openapi describes the action catalog as an OpenAPI 3 document.
package openapi

import (
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/schema"
)

// Info is the document header.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Build returns a document with one POST operation per action, keyed by
// "/<action name>". Actions are emitted in name order.
func Build(info Info, catalog []domain.Action) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		},
		Paths: openapi3.NewPaths(),
	}

	sorted := append([]domain.Action(nil), catalog...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	for _, action := range sorted {
		doc.Paths.Set("/"+action.Name(), &openapi3.PathItem{Post: operation(action)})
	}
	return doc
}

func operation(action domain.Action) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = action.Name()
	op.Summary = "Invoke " + action.Name()
	op.Tags = []string{"actions"}

	body := openapi3.NewRequestBody().
		WithDescription("Action payload").
		WithJSONSchema(PayloadSchema(action.Schema()))
	body.Required = len(action.Schema().RequiredNames()) > 0
	op.RequestBody = &openapi3.RequestBodyRef{Value: body}

	op.AddResponse(http.StatusOK, openapi3.NewResponse().
		WithDescription("Action result").
		WithJSONSchema(openapi3.NewSchema()))

	for _, status := range []struct {
		code int
		desc string
	}{
		{http.StatusBadRequest, "Malformed request or invalid payload"},
		{http.StatusUnauthorized, "Missing or wrong access token"},
		{http.StatusNotFound, "Action not found"},
		{http.StatusTooManyRequests, "Rate limit exceeded"},
		{http.StatusInternalServerError, "Action execution failed"},
		{http.StatusServiceUnavailable, "Transport is not open"},
	} {
		op.AddResponse(status.code, openapi3.NewResponse().
			WithDescription(status.desc).
			WithJSONSchema(errorSchema()))
	}
	return op
}

// PayloadSchema renders an action schema as a JSON object schema.
func PayloadSchema(s schema.Schema) *openapi3.Schema {
	obj := openapi3.NewObjectSchema()
	for _, f := range s {
		prop := typeSchema(f.Type)
		prop.Description = f.Description
		obj.WithProperty(f.Name, prop)
	}
	obj.Required = s.RequiredNames()
	return obj
}

func typeSchema(t schema.Type) *openapi3.Schema {
	switch v := t.(type) {
	case *schema.StringType:
		return openapi3.NewStringSchema()
	case *schema.NumberType:
		return openapi3.NewFloat64Schema()
	case *schema.NumberOrStringType:
		return openapi3.NewOneOfSchema(openapi3.NewFloat64Schema(), openapi3.NewStringSchema())
	case *schema.BoolType:
		return openapi3.NewBoolSchema()
	case *schema.EnumType:
		values := make([]any, 0, len(v.Values()))
		for _, val := range v.Values() {
			values = append(values, val)
		}
		return openapi3.NewStringSchema().WithEnum(values...)
	default:
		return openapi3.NewSchema()
	}
}

func errorSchema() *openapi3.Schema {
	kinds := []any{
		string(domain.KindMalformedRequest),
		string(domain.KindActionNotFound),
		string(domain.KindInvalidPayload),
		string(domain.KindActionExecutionFailed),
		string(domain.KindTransportUnavailable),
		string(domain.KindInternalSerializationFault),
	}
	s := openapi3.NewObjectSchema().
		WithProperty("kind", openapi3.NewStringSchema().WithEnum(kinds...)).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("action", openapi3.NewStringSchema()).
		WithProperty("field", openapi3.NewStringSchema())
	s.Required = []string{"kind", "message"}
	return s
}
