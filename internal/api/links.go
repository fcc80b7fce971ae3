package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/state>; rel="state"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/state>; rel="state"`,
	},
	"/api/v1/state": {
		`</api/v1/locale>; rel="locale"`,
		`</api/v1/server>; rel="server"`,
		`</api/v1/refresh>; rel="refresh"`,
	},
	"/api/v1/collections/{id}/toggle": {
		`</api/v1/state>; rel="state"`,
	},
	"/api/v1/collections/{id}/items": {
		`</api/v1/state>; rel="state"`,
	},
	"/api/v1/collections/{id}/queryables": {
		`</api/v1/state>; rel="state"`,
	},
	"/api/v1/collections/{id}/tiles": {
		`</api/v1/state>; rel="state"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		// Collection endpoints get a self link and a link to their collection.
		if strings.Contains(op.Path, "{id}") {
			path := ctx.URL().Path
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, path))
			if strings.Count(op.Path, "/") > 4 {
				ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="collection"`, path[:strings.LastIndex(path, "/")]))
			}
		}

		return v, nil
	}
}
