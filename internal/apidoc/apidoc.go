// Package apidoc reads the OpenAPI description of the WorkIt API and checks
// it against earlier revisions and against the routes the server registers.
package apidoc

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

// Operation is the documented part of a single method on a path.
type Operation struct {
	Responses map[string]struct{}
}

// Spec maps path -> lower-case method -> operation.
type Spec struct {
	Paths map[string]map[string]Operation
}

// Route is a method and path as the router registered it.
type Route struct {
	Method string
	Path   string
}

// Load reads and parses an OpenAPI document.
func Load(path string) (Spec, error) {
	// #nosec G304: path comes from CLI flags or tests
	raw, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, err
	}
	return Parse(raw)
}

// Parse extracts paths, methods and response codes from an OpenAPI document.
func Parse(raw []byte) (Spec, error) {
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Spec{}, err
	}

	pathsRaw, ok := doc["paths"]
	if !ok {
		return Spec{}, errors.New("missing top-level paths field")
	}
	pathsMap, ok := toMap(pathsRaw)
	if !ok {
		return Spec{}, errors.New("paths is not an object")
	}

	spec := Spec{Paths: make(map[string]map[string]Operation)}
	for pathKey, pathEntry := range pathsMap {
		pathOps, ok := toMap(pathEntry)
		if !ok {
			continue
		}

		ops := make(map[string]Operation)
		for methodKey, methodEntry := range pathOps {
			method := strings.ToLower(strings.TrimSpace(methodKey))
			if _, supported := supportedMethods[method]; !supported {
				continue
			}
			methodMap, ok := toMap(methodEntry)
			if !ok {
				continue
			}

			responses := make(map[string]struct{})
			if raw, exists := methodMap["responses"]; exists {
				if codes, ok := toMap(raw); ok {
					for code := range codes {
						if c := strings.ToLower(strings.TrimSpace(code)); c != "" {
							responses[c] = struct{}{}
						}
					}
				}
			}
			ops[method] = Operation{Responses: responses}
		}

		if len(ops) > 0 {
			spec.Paths[pathKey] = ops
		}
	}
	return spec, nil
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Compare lists the breaking changes from base to revision: removed paths,
// removed operations and removed response codes.
func Compare(base, revision Spec) []string {
	var issues []string

	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseOp := range baseOps {
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}
			for code := range baseOp.Responses {
				if _, ok := revOp.Responses[code]; !ok {
					issues = append(issues, fmt.Sprintf(
						"removed response code: %s %s -> %s",
						strings.ToUpper(method), path, strings.ToUpper(code),
					))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}

var routeParam = regexp.MustCompile(`:([A-Za-z0-9_]+)\??`)

// NormalizeRoute turns a router path such as /api/posts/:id/ into the
// document form /api/posts/{id}.
func NormalizeRoute(path string) string {
	p := routeParam.ReplaceAllString(path, "{$1}")
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// Coverage reports registered routes missing from the document and
// documented operations no route serves. HEAD and OPTIONS routes added
// implicitly by the router are ignored.
func Coverage(spec Spec, routes []Route) (undocumented, stale []string) {
	served := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		method := strings.ToLower(r.Method)
		if method == "head" || method == "options" {
			continue
		}
		path := NormalizeRoute(r.Path)
		key := strings.ToUpper(method) + " " + path
		if _, seen := served[key]; seen {
			continue
		}
		served[key] = struct{}{}
		if _, ok := spec.Paths[path][method]; !ok {
			undocumented = append(undocumented, key)
		}
	}

	for path, ops := range spec.Paths {
		for method := range ops {
			key := strings.ToUpper(method) + " " + path
			if _, ok := served[key]; !ok {
				stale = append(stale, key)
			}
		}
	}

	sort.Strings(undocumented)
	sort.Strings(stale)
	return undocumented, stale
}
