package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/flowlogic/pkg/runtime"
	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// HandleValidate implements the flowlogic/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	wf, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d steps, %d hooks)",
		wf.Meta.Name, len(wf.AllSteps()), len(wf.Hooks))), nil
}

// HandleEval implements the flowlogic/eval MCP tool.
func HandleEval(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	source, _ := args["expression"].(string)
	if source == "" {
		return errorResult("expression argument is required"), nil
	}

	rt, result := loadRuntime(args)
	if result != nil {
		return result, nil
	}

	vars, _ := args["vars"].(map[string]any)
	out, err := rt.EvaluateExpression(source, vars)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(map[string]any{"expression": source, "value": out}, false), nil
}

// HandleVisibility implements the flowlogic/visibility MCP tool.
func HandleVisibility(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	rt, result := loadRuntime(args)
	if result != nil {
		return result, nil
	}

	vars, _ := args["vars"].(map[string]any)
	return jsonResult(rt.ResolveVisibility(vars), false), nil
}

// HandleValidatePage implements the flowlogic/validate_page MCP tool.
func HandleValidatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	section, _ := args["section"].(string)
	if section == "" {
		return errorResult("section argument is required"), nil
	}

	rt, result := loadRuntime(args)
	if result != nil {
		return result, nil
	}

	answers, _ := args["answers"].(map[string]any)
	res, err := rt.ValidatePage(section, answers)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(res, !res.Valid), nil
}

// HandleHooks implements the flowlogic/hooks MCP tool.
func HandleHooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	phase, _ := args["phase"].(string)
	if phase == "" {
		return errorResult("phase argument is required"), nil
	}

	rt, result := loadRuntime(args)
	if result != nil {
		return result, nil
	}

	data, _ := args["data"].(map[string]any)
	res := rt.ExecuteHooksForPhase(ctx, "mcp-run-1", phase, data)
	return jsonResult(res, !res.Success), nil
}

// HandleSchema implements the flowlogic/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// loadRuntime validates the workflow at args["path"] and builds a runtime for
// it. On failure the second return is the error result to send back.
func loadRuntime(args map[string]any) (*runtime.Runtime, *mcp.CallToolResult) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, errorResult("path argument is required")
	}
	wf, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return nil, errorResult(formatErrors(errs))
	}
	return runtime.New(wf), nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func jsonResult(v any, isError bool) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isError,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
