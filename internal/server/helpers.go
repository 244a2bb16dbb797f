// Copyright 2025 Joseph Cumines
//
// Helper functions for tool handlers

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/joeycumines/windows-mcp/internal/desktop"
	"github.com/joeycumines/windows-mcp/internal/scrape"
	"github.com/joeycumines/windows-mcp/internal/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// maxDisplayTextLen is the maximum length for argument values written to the
// audit log. Longer values are truncated with "..." suffix.
const maxDisplayTextLen = 200

// truncateText truncates text to maxDisplayTextLen bytes with "..." suffix if
// needed, without splitting a UTF-8 sequence.
func truncateText(s string) string {
	if len(s) <= maxDisplayTextLen {
		return s
	}
	cut := maxDisplayTextLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// errorResult creates a CallToolResult with IsError=true and the given message.
func errorResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(msg)
}

// errorResultf creates a CallToolResult with IsError=true and a formatted message.
func errorResultf(format string, args ...any) *mcp.CallToolResult {
	return errorResult(fmt.Sprintf(format, args...))
}

// textResult creates a CallToolResult with a single text content.
func textResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

// textResultf creates a CallToolResult with a formatted text content.
func textResultf(format string, args ...any) *mcp.CallToolResult {
	return textResult(fmt.Sprintf(format, args...))
}

// invalidParams returns an error wrapping desktop.ErrInvalidArgument. Handlers
// return it before any desktop call is made.
func invalidParams(format string, args ...any) error {
	return fmt.Errorf("%w: %s", desktop.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// toPoint converts a decoded coordinate list into a point. field names the
// argument in the error message.
func toPoint(field string, loc []float64) (desktop.Point, error) {
	if len(loc) != 2 || !isInt32(loc[0]) || !isInt32(loc[1]) {
		return desktop.Point{}, invalidParams("%s must be a list of exactly 2 integers [x, y]", field)
	}
	return desktop.Point{X: int(loc[0]), Y: int(loc[1])}, nil
}

func isWhole(v float64) bool {
	return !math.IsInf(v, 0) && v == math.Trunc(v)
}

// isInt32 reports whether v is a whole number the native input APIs can take.
func isInt32(v float64) bool {
	return isWhole(v) && v >= math.MinInt32 && v <= math.MaxInt32
}

// formatToolError formats a handler error for an MCP tool response, with a
// suggestion where one is known.
func formatToolError(err error, toolName string) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, desktop.ErrInvalidArgument):
		msg := strings.TrimPrefix(err.Error(), desktop.ErrInvalidArgument.Error()+": ")
		return fmt.Sprintf("Invalid parameters for %s: %s", toolName, msg)
	case errors.Is(err, scrape.ErrInvalidURL):
		return fmt.Sprintf("Invalid parameters for %s: %s", toolName, err.Error())
	case errors.Is(err, desktop.ErrUnsupportedPlatform):
		return fmt.Sprintf("Error in %s: %s\nSuggestion: %s", toolName, err.Error(),
			"Run the server on Windows, or set WINDOWS_MCP_AGENT_ADDR to a windows-mcp-agent running on the target host")
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Error in %s: %s\nSuggestion: %s", toolName, err.Error(),
			"Operation timed out. Try increasing WINDOWS_MCP_REQUEST_TIMEOUT or simplifying the request")
	}
	return formatGRPCError(err, toolName)
}

// formatGRPCError formats a gRPC error with context for MCP tool responses.
// It extracts the gRPC status code and message, and provides actionable suggestions
// for common error scenarios.
func formatGRPCError(err error, toolName string) string {
	if err == nil {
		return ""
	}

	st, ok := grpcstatus.FromError(err)
	if !ok {
		// Not a gRPC error, return as-is
		return fmt.Sprintf("Error in %s: %s", toolName, err.Error())
	}

	code := st.Code()
	msg := st.Message()
	suggestion := ""

	switch code {
	case codes.PermissionDenied:
		suggestion = "Run windows-mcp-agent in the interactive desktop session; elevated windows need an elevated agent"
	case codes.NotFound:
		suggestion = "Verify the application or window exists and the name is correct"
	case codes.InvalidArgument:
		suggestion = "Check the request parameters for invalid or missing values"
	case codes.Unavailable:
		suggestion = "The windows-mcp-agent may be down or unreachable. Check WINDOWS_MCP_AGENT_ADDR and the agent logs"
	case codes.DeadlineExceeded:
		suggestion = "Operation timed out. Try increasing WINDOWS_MCP_REQUEST_TIMEOUT or simplifying the request"
	case codes.Internal:
		suggestion = "An internal agent error occurred. Check the agent logs for details"
	case codes.Canceled:
		suggestion = "The request was cancelled before it completed"
	case codes.ResourceExhausted:
		suggestion = "The response exceeded the message size limit. Try again without use_vision"
	case codes.Unimplemented:
		suggestion = "The agent does not support this operation. Check that the agent runs on Windows and matches the server version"
	}

	result := fmt.Sprintf("Error in %s: %s - %s", toolName, code.String(), msg)
	if suggestion != "" {
		result += fmt.Sprintf("\nSuggestion: %s", suggestion)
	}
	return result
}

// decodeArguments unmarshals tool arguments into a JSON object. Empty and
// null arguments decode to an empty map.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// validateToolInput validates decoded arguments against a tool's InputSchema.
// It checks:
//   - All required fields are present
//   - Field types match the schema (string, number, boolean, integer, array, object)
//   - Enum values are in the allowed set (if enum is specified)
//   - Numbers are within minimum and maximum (if specified)
//
// Returns a JSON-RPC error response with ErrCodeInvalidParams (-32602) if validation fails,
// nil if validation passes.
//
// Note: Extra properties not defined in the schema are allowed per JSON-RPC conventions.
func validateToolInput(id json.RawMessage, args map[string]any, schema mcp.ToolInputSchema) *transport.Message {
	for _, field := range schema.Required {
		if v, exists := args[field]; !exists || v == nil {
			return transport.NewErrorResponse(id, transport.ErrCodeInvalidParams,
				fmt.Sprintf("missing required field: %s", field))
		}
	}

	properties := getSchemaProperties(schema.Properties)
	for fieldName, value := range args {
		propSchema, exists := properties[fieldName]
		if !exists {
			continue
		}
		if err := validateFieldValue(fieldName, value, propSchema); err != nil {
			return transport.NewErrorResponse(id, transport.ErrCodeInvalidParams, err.Error())
		}
	}

	return nil
}

// getSchemaProperties narrows the schema properties to the object-valued ones.
func getSchemaProperties(props map[string]any) map[string]map[string]any {
	result := make(map[string]map[string]any, len(props))
	for k, v := range props {
		if propSchema, ok := v.(map[string]any); ok {
			result[k] = propSchema
		}
	}
	return result
}

// validateFieldValue validates a single field value against its property schema.
// Returns an error if validation fails.
func validateFieldValue(fieldName string, value any, propSchema map[string]any) error {
	// Skip validation for nil/null values (unless required, which is checked above)
	if value == nil {
		return nil
	}

	if schemaType, ok := propSchema["type"].(string); ok {
		if err := validateType(fieldName, value, schemaType); err != nil {
			return err
		}
	}

	if err := validateRange(fieldName, value, propSchema); err != nil {
		return err
	}

	return validateEnumValue(fieldName, value, propSchema)
}

// validateType validates that a value matches the expected JSON Schema type.
// JSON Schema types: string, number, integer, boolean, array, object
func validateType(fieldName string, value any, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field %q must be a string, got %T", fieldName, value)
		}
	case "number":
		if !isNumber(value) {
			return fmt.Errorf("field %q must be a number, got %T", fieldName, value)
		}
	case "integer":
		if !isInteger(value) {
			return fmt.Errorf("field %q must be an integer, got %T", fieldName, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean, got %T", fieldName, value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("field %q must be an array, got %T", fieldName, value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("field %q must be an object, got %T", fieldName, value)
		}
	}
	return nil
}

// validateRange checks minimum and maximum for numeric values.
func validateRange(fieldName string, value any, propSchema map[string]any) error {
	v, ok := value.(float64)
	if !ok {
		return nil
	}
	if lo, ok := propSchema["minimum"].(float64); ok && v < lo {
		return fmt.Errorf("field %q must be at least %v, got %v", fieldName, lo, v)
	}
	if hi, ok := propSchema["maximum"].(float64); ok && v > hi {
		return fmt.Errorf("field %q must be at most %v, got %v", fieldName, hi, v)
	}
	return nil
}

// isNumber returns true if the value is a valid JSON number.
func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// isInteger returns true if the value is an integer (whole number).
// JSON unmarshaling to interface{} produces float64 for all numbers,
// so we need to check if the float64 is a whole number.
func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return isWhole(v)
	default:
		return false
	}
}

// validateEnumValue validates that a value is in the allowed enum set.
// Returns nil if no enum is defined or if value is in the allowed set.
func validateEnumValue(fieldName string, value any, propSchema map[string]any) error {
	enumValues, ok := propSchema["enum"]
	if !ok {
		return nil
	}

	// mcp.Enum stores []string
	if enumStrings, ok := enumValues.([]string); ok {
		valueStr, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q must be a string for enum validation, got %T", fieldName, value)
		}
		if slices.Contains(enumStrings, valueStr) {
			return nil
		}
		return fmt.Errorf("field %q must be one of [%s], got %q", fieldName, strings.Join(enumStrings, ", "), valueStr)
	}

	// []any when the schema itself came from JSON
	if enumIface, ok := enumValues.([]any); ok {
		if slices.Contains(enumIface, value) {
			return nil
		}
		allowedStrs := make([]string, 0, len(enumIface))
		for _, v := range enumIface {
			allowedStrs = append(allowedStrs, fmt.Sprintf("%v", v))
		}
		return fmt.Errorf("field %q must be one of [%s], got %v", fieldName, strings.Join(allowedStrs, ", "), value)
	}

	return nil
}
