package cli

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/BradenHooton/csm/internal/models"
)

// ArgKind is the type a positional argument must parse as
type ArgKind int

const (
	ArgStr ArgKind = iota
	ArgInt
)

// ArgSpec names one positional argument of an action
type ArgSpec struct {
	Name string
	Kind ArgKind
}

// Column is one table column: the response field and its title
type Column struct {
	Field string
	Title string
}

// Output formats
const (
	FormatJSON  = "json"
	FormatXML   = "xml"
	FormatTable = "table"
)

// Request is the REST call a command translates into
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Command is one parsed CLI invocation
type Command struct {
	Name    string
	Action  string
	Options map[string]string
	Args    []string

	// Local commands run against storage directly instead of the REST API
	Local bool

	methods  map[string]string
	argSpecs map[string][]ArgSpec
	headers  []Column
	filter   string
	resource string
	route    func(c *Command) (string, url.Values, any)
}

// Method is the HTTP method used for the action, GET unless mapped
func (c *Command) Method() string {
	if m, ok := c.methods[c.Action]; ok {
		return m
	}
	return http.MethodGet
}

// Format is the requested output format
func (c *Command) Format() string {
	if f := c.Options["format"]; f != "" {
		return f
	}
	return FormatTable
}

// Resource is the permission resource the command acts on
func (c *Command) Resource() string {
	return c.resource
}

// Validate checks the positional arguments against the action's ArgSpecs. Actions
// without ArgSpecs accept any arguments.
func (c *Command) Validate() error {
	specs, ok := c.argSpecs[c.Action]
	if !ok {
		return nil
	}

	if len(c.Args) != len(specs) {
		names := make([]string, len(specs))
		for i, s := range specs {
			names[i] = `"` + s.Name + `"`
		}
		return models.InvalidRequest(models.KeyInvalidArgument,
			`For "%s" action you must specify %s arguments`, c.Action, strings.Join(names, " and "))
	}

	for i, s := range specs {
		if s.Kind != ArgInt {
			continue
		}
		if _, err := strconv.Atoi(c.Args[i]); err != nil {
			return models.InvalidRequest(models.KeyInvalidArgument,
				`"%s" argument must be integer, got %s instead`, s.Name, c.Args[i])
		}
	}
	return nil
}

// Request builds the REST call for the command
func (c *Command) Request() Request {
	path, query, body := c.route(c)
	return Request{Method: c.Method(), Path: path, Query: query, Body: body}
}

// arg returns positional argument i or the empty string
func (c *Command) arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// list splits a comma separated option, nil when unset
func (c *Command) list(name string) []string {
	raw := c.Options[name]
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
