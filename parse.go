package formflow

import (
	"context"
	"io/fs"

	"github.com/goliatone/go-formflow/internal/openapi/loader"
	"github.com/goliatone/go-formflow/internal/openapi/parser"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// ParseOptions aliases the catalogue parser options.
type ParseOptions = parser.Options

// ParseForms reads the OpenAPI document at src and returns its forms without
// binding them to the built-in catalogue. FS sources resolve against files.
func ParseForms(ctx context.Context, src schema.Source, files fs.FS, opts ParseOptions) ([]schema.FormSchema, error) {
	doc, err := loader.New(files).Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return parser.New(opts).Forms(ctx, doc)
}
