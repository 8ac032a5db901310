// Package main checks that the Foodgram API document stays backward compatible
// with a previously published swagger file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"foodgram/docs"

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

// surface is the part of a swagger document clients depend on: the
// operations per path and the response codes each one documents.
type surface map[string]map[string]map[string]struct{}

func main() {
	basePath := flag.String("base", "", "published swagger.json or swagger.yaml")
	revisionPath := flag.String("revision", "", "document to check (default: the one compiled into the server)")
	flag.Parse()

	if strings.TrimSpace(*basePath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> [-revision <path>]")
		os.Exit(2)
	}

	base, err := loadFile(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base document: %v\n", err)
		os.Exit(1)
	}

	var revision surface
	if *revisionPath == "" {
		revision, err = parseSurface([]byte(docs.SwaggerInfo.ReadDoc()))
	} else {
		revision, err = loadFile(*revisionPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load revision document: %v\n", err)
		os.Exit(1)
	}

	issues := compare(base, revision)
	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "backward compatibility check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Printf("openapi compatibility check passed (%d paths)\n", len(base))
}

func loadFile(path string) (surface, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSurface(raw)
}

// parseSurface reads a swagger document. JSON is valid YAML, so one decoder
// covers both swag outputs.
func parseSurface(raw []byte) (surface, error) {
	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Paths == nil {
		return nil, errors.New("missing top-level paths field")
	}

	out := make(surface, len(doc.Paths))
	for path, ops := range doc.Paths {
		methods := make(map[string]map[string]struct{})
		for method, node := range ops {
			method = strings.ToLower(strings.TrimSpace(method))
			if _, ok := supportedMethods[method]; !ok {
				continue
			}
			var op struct {
				Responses map[string]yaml.Node `yaml:"responses"`
			}
			if err := node.Decode(&op); err != nil {
				return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
			}
			codes := make(map[string]struct{}, len(op.Responses))
			for code := range op.Responses {
				if code = strings.ToLower(strings.TrimSpace(code)); code != "" {
					codes[code] = struct{}{}
				}
			}
			methods[method] = codes
		}
		if len(methods) > 0 {
			out[path] = methods
		}
	}
	return out, nil
}

// compare lists everything base documents that revision no longer does.
func compare(base, revision surface) []string {
	var issues []string

	for path, baseOps := range base {
		revOps, ok := revision[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseCodes := range baseOps {
			revCodes, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}
			for code := range baseCodes {
				if _, ok := revCodes[code]; !ok {
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
