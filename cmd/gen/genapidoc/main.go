package genapidoc

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/openapidoc/schema"
	"github.com/yusufsyaifudin/openapidoc/utils"
)

const defaultOutDir = "assets/swaggerui"

type ApiDoc struct {
	flags  *flag.FlagSet
	outDir string
	server string
}

var _ cli.Command = (*ApiDoc)(nil)

func NewApiDocCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &ApiDoc{}
		cmd.flags = flag.NewFlagSet("apidoc", flag.ContinueOnError)
		cmd.flags.StringVar(&cmd.outDir, "out", defaultOutDir, "directory to write swagger.json and swagger.yaml")
		cmd.flags.StringVar(&cmd.server, "server", "http://localhost:3001/", "server url listed in the document")
		return cmd, nil
	}
}

func (a *ApiDoc) Help() string {
	return `Usage: katalog apidoc [-out assets/swaggerui] [-server URL]

  Generate the OpenAPI document of the REST API as JSON and YAML.`
}

func (a *ApiDoc) Synopsis() string {
	return "Generate the OpenAPI document"
}

func (a *ApiDoc) Run(args []string) int {
	if err := a.flags.Parse(args); err != nil {
		log.Printf("error parsing argument: %s", err)
		return cli.RunResultHelp
	}

	doc := BuildDoc(context.Background(), a.server)

	j, y, err := Marshal(doc)
	if err != nil {
		log.Println(err)
		return 1
	}

	if err = WriteFile(j, filepath.Join(a.outDir, "swagger.json")); err != nil {
		log.Println(err)
		return 1
	}

	if err = WriteFile(y, filepath.Join(a.outDir, "swagger.yaml")); err != nil {
		log.Println(err)
		return 1
	}

	return 0
}

// BuildDoc registers every route of the REST API. Every non-2xx answer is an httptyped.ErrorResp.
func BuildDoc(ctx context.Context, serverURL string) *openapi3.T {
	info := &openapi3.Info{
		Title:       "Katalog",
		Description: "Directory of web applications: public listing, submissions, reports and moderation.",
		Version:     "1.0.0",
	}

	servers := openapi3.Servers{
		{
			URL:         serverURL,
			Description: "API server",
		},
	}

	components := openapi3.Components{
		Schemas:       map[string]*openapi3.SchemaRef{},
		Parameters:    map[string]*openapi3.ParameterRef{},
		RequestBodies: map[string]*openapi3.RequestBodyRef{},
		Responses:     map[string]*openapi3.ResponseRef{},
		SecuritySchemes: map[string]*openapi3.SecuritySchemeRef{
			bearerScheme: {Value: openapi3.NewJWTSecurityScheme()},
		},
	}
	paths := make(map[string]*openapi3.PathItem)

	gen := &generator{
		ctx:        ctx,
		components: components,
		paths:      paths,
	}

	// ** Register all routes here
	Health(gen)
	AppListApproved(gen)
	AppListAll(gen)
	AppCreate(gen)
	AppAdminCreate(gen)
	AppUpdate(gen)
	AppDelete(gen)
	AppIncrementClicks(gen)
	AppSetApproval(gen)
	ReportCreate(gen)
	ReportList(gen)
	ReportDelete(gen)
	ReportDeleteByApp(gen)
	AdminSession(gen)

	return &openapi3.T{
		OpenAPI:    "3.0.0",
		Components: components,
		Info:       info,
		Servers:    servers,
		Paths:      paths,
	}
}

// Marshal returns the document as JSON and YAML.
func Marshal(doc *openapi3.T) (j []byte, y []byte, err error) {
	j, err = doc.MarshalJSON()
	if err != nil {
		err = fmt.Errorf("cannot marshal openapi3 doc: %w", err)
		return
	}

	var i interface{}
	if err = json.Unmarshal(j, &i); err != nil {
		err = fmt.Errorf("cannot unmarshal openapi3 doc: %w", err)
		return
	}

	y, err = utils.YamlMarshalIndent(i)
	if err != nil {
		err = fmt.Errorf("cannot marshal YAML openapi3 doc: %w", err)
		return
	}

	return
}

// WriteFile replaces fileName with content, creating the parent directory when needed.
func WriteFile(content []byte, fileName string) error {
	dir := filepath.Dir(fileName)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(fileName, content, 0o644); err != nil {
		return fmt.Errorf("cannot write file %s: %w", fileName, err)
	}

	return nil
}

func mustNewSchemaGenerator(ctx context.Context, prefix string, value interface{}) schema.GenerateOut {
	g, err := schema.NewGenerator(schema.WithLog(os.Stdout), schema.WithSchemaPrefix(prefix))
	if err != nil {
		panic(err)
	}

	out, err := g.Generate(ctx, value)
	if err != nil {
		panic(err)
	}

	return out
}
