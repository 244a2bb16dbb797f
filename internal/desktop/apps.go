// Copyright 2025 Joseph Cumines

package desktop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/joeycumines/windows-mcp/internal/powershell"
)

const startAppsScript = `Get-StartApps | Select-Object Name, AppID | ConvertTo-Json -Compress`

// StartApp is an entry of the Start menu app list.
type StartApp struct {
	Name  string `json:"Name"`
	AppID string `json:"AppID"`
}

func listStartApps(ctx context.Context, shell powershell.Runner) ([]StartApp, error) {
	res, err := shell.Run(ctx, startAppsScript)
	if err != nil {
		return nil, fmt.Errorf("list start apps: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("list start apps: exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
	return decodeStartApps([]byte(res.Output))
}

// decodeStartApps accepts either a JSON array or, for a single app, the bare
// object ConvertTo-Json emits.
func decodeStartApps(data []byte) ([]StartApp, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var app StartApp
		if err := json.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("decode start apps: %w", err)
		}
		return []StartApp{app}, nil
	}
	var apps []StartApp
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("decode start apps: %w", err)
	}
	return apps, nil
}

// bestMatch returns the index of the candidate best matching name, preferring
// a case-insensitive exact match over a fuzzy one, or -1.
func bestMatch(name string, candidates []string) int {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return -1
	}
	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = strings.ToLower(c)
		if lowered[i] == needle {
			return i
		}
	}
	matches := fuzzy.Find(needle, lowered)
	if len(matches) == 0 {
		return -1
	}
	return matches[0].Index
}
