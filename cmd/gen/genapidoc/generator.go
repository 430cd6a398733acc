package genapidoc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/yusufsyaifudin/katalog/transport/restapi/httptyped"
)

const bearerScheme = "AdminBearer"

type generator struct {
	ctx        context.Context
	components openapi3.Components
	paths      map[string]*openapi3.PathItem
}

// route describes one operation. Req and Resp are example values, the schema is generated from them.
type route struct {
	ID          string
	Tag         string
	Summary     string
	Description string
	Method      string
	Path        string
	Admin       bool
	Params      []*openapi3.Parameter

	Req        interface{}
	Resp       interface{}
	RespList   bool
	RespStatus int

	// ErrStatus lists the error answers besides 500.
	ErrStatus []int
}

// schemaRef generates the schema of value under the scoped prefix and returns a reference to it.
func (g *generator) schemaRef(prefix string, value interface{}) *openapi3.SchemaRef {
	out := mustNewSchemaGenerator(g.ctx, prefix, value)
	for s, ref := range out.Schemas {
		g.components.Schemas[s] = ref
	}

	return &openapi3.SchemaRef{
		Ref: fmt.Sprintf("#/components/schemas/%s", out.ParentSchemaName),
	}
}

func (g *generator) errorResp() *openapi3.SchemaRef {
	return g.schemaRef("Error.", httptyped.ErrorResp{Error: "App not found"})
}

func (g *generator) add(r route) {
	op := openapi3.NewOperation()
	op.Tags = []string{r.Tag}
	op.Summary = r.Summary
	op.Description = r.Description
	op.OperationID = r.ID

	for _, p := range r.Params {
		op.AddParameter(p)
	}

	if r.Admin {
		op.Security = &openapi3.SecurityRequirements{
			openapi3.NewSecurityRequirement().Authenticate(bearerScheme),
		}
	}

	// --- Request schema
	if r.Req != nil {
		reqBody := openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchemaRef(g.schemaRef(r.ID+".Req.", r.Req))

		g.components.RequestBodies[r.ID] = &openapi3.RequestBodyRef{Value: reqBody}
		op.RequestBody = &openapi3.RequestBodyRef{
			Ref: fmt.Sprintf("#/components/requestBodies/%s", r.ID),
		}
	}

	// --- Response schema
	status := r.RespStatus
	if status == 0 {
		status = http.StatusOK
	}

	switch {
	case r.Resp == nil:
		op.AddResponse(status, openapi3.NewResponse().WithDescription(http.StatusText(status)))

	case r.RespList:
		items := g.schemaRef(fmt.Sprintf("%s.Resp%d.", r.ID, status), r.Resp)
		list := &openapi3.SchemaRef{Value: &openapi3.Schema{Type: "array", Items: items}}
		op.AddResponse(status, openapi3.NewResponse().WithJSONSchemaRef(list).WithDescription(http.StatusText(status)))

	default:
		resp := g.schemaRef(fmt.Sprintf("%s.Resp%d.", r.ID, status), r.Resp)
		op.AddResponse(status, openapi3.NewResponse().WithJSONSchemaRef(resp).WithDescription(http.StatusText(status)))
	}

	errStatus := append([]int{}, r.ErrStatus...)
	if r.Admin {
		errStatus = append(errStatus, http.StatusUnauthorized)
	}
	errStatus = append(errStatus, http.StatusInternalServerError)

	for _, code := range errStatus {
		op.AddResponse(code, openapi3.NewResponse().WithJSONSchemaRef(g.errorResp()).WithDescription(http.StatusText(code)))
	}

	if _, exist := g.paths[r.Path]; !exist {
		g.paths[r.Path] = &openapi3.PathItem{}
	}

	g.paths[r.Path].SetOperation(r.Method, op)
}

func pathID(name, description string) *openapi3.Parameter {
	p := openapi3.NewPathParameter(name).WithDescription(description)
	p.Schema = &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}
	return p
}

func queryString(name, description string) *openapi3.Parameter {
	p := openapi3.NewQueryParameter(name).WithDescription(description)
	p.Schema = &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}
	p.Required = false
	return p
}
