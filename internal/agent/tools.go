package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"workflow-docs-rag/internal/rag"
)

const (
	ToolRetrieve  = "retrieve_relevant_documentation"
	ToolListPages = "list_documentation_pages"
	ToolGetPage   = "get_page_content"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Param is a string parameter of a tool.
type Param struct {
	Name        string
	Description string
	Required    bool
}

type Tool struct {
	Name        string
	Description string
	Params      []Param
	Call        func(ctx context.Context, args map[string]string) rag.Result[string]
}

// Registry is the lookup table tools are dispatched from. Registration order
// is kept so tool lists are stable.
type Registry struct {
	tools []Tool
	index map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

func (r *Registry) Register(tools ...Tool) error {
	for _, t := range tools {
		if t.Name == "" || t.Call == nil {
			return fmt.Errorf("tool %q needs a name and a handler", t.Name)
		}
		if _, ok := r.index[t.Name]; ok {
			return fmt.Errorf("tool %q already registered", t.Name)
		}
		r.index[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

func (r *Registry) Tools() []Tool {
	return append([]Tool(nil), r.tools...)
}

// LLMTools describes the registered tools as function declarations.
func (r *Registry) LLMTools() []llms.Tool {
	out := make([]llms.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		props := make(map[string]any, len(t.Params))
		required := []string{}
		for _, p := range t.Params {
			props[p.Name] = map[string]any{
				"type":        "string",
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		})
	}
	return out
}

// Dispatch runs the named tool with JSON encoded arguments. Tool failures are
// logged and their degraded value returned; only unknown tools and malformed
// arguments are errors.
func (r *Registry) Dispatch(ctx context.Context, name, arguments string) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	raw := map[string]any{}
	if s := strings.TrimSpace(arguments); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidArguments, name, err)
		}
	}
	args := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s: %q must be a string", ErrInvalidArguments, name, k)
		}
		args[k] = s
	}

	return r.Call(ctx, t, args)
}

// Call invokes t with already decoded arguments.
func (r *Registry) Call(ctx context.Context, t Tool, args map[string]string) (string, error) {
	for _, p := range t.Params {
		if p.Required && args[p.Name] == "" {
			return "", fmt.Errorf("%w: %s: missing %q", ErrInvalidArguments, t.Name, p.Name)
		}
	}

	res := t.Call(ctx, args)
	if !res.OK() {
		log.Warn().Err(res.Err).Str("tool", t.Name).Msg("Tool call degraded")
	} else {
		log.Debug().Str("tool", t.Name).Int("bytes", len(res.Value)).Msg("Tool call done")
	}
	return res.Value, nil
}

// DocsTools exposes the documentation lookups as agent tools.
func DocsTools(r *rag.RAG) []Tool {
	return []Tool{
		{
			Name:        ToolRetrieve,
			Description: "Retrieve relevant documentation chunks based on the query with RAG.",
			Params: []Param{
				{Name: "user_query", Description: "The user's question or query", Required: true},
			},
			Call: func(ctx context.Context, args map[string]string) rag.Result[string] {
				return r.Retrieve(ctx, args["user_query"])
			},
		},
		{
			Name:        ToolListPages,
			Description: "Retrieve a list of all available documentation pages. Returns a JSON array of URLs.",
			Call: func(ctx context.Context, _ map[string]string) rag.Result[string] {
				res := r.ListPages(ctx)
				b, err := json.Marshal(res.Value)
				if err != nil {
					return rag.Result[string]{Value: "[]", Err: err}
				}
				return rag.Result[string]{Value: string(b), Err: res.Err}
			},
		},
		{
			Name:        ToolGetPage,
			Description: "Retrieve the full content of a specific documentation page by combining all its chunks.",
			Params: []Param{
				{Name: "url", Description: "The URL of the page to retrieve", Required: true},
			},
			Call: func(ctx context.Context, args map[string]string) rag.Result[string] {
				return r.GetPage(ctx, args["url"])
			},
		},
	}
}
