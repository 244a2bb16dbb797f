// Copyright 2025 Joseph Cumines

package desktop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// systemInfoScript reports the ANSI code page as the encoding. The console
// encoding is always UTF-8 once powershell.Exec has run its prelude.
const systemInfoScript = `$os = Get-CimInstance -ClassName Win32_OperatingSystem
[pscustomobject]@{
  version = $os.Caption
  language = (Get-Culture).DisplayName
  encoding = [System.Text.Encoding]::Default.WebName
} | ConvertTo-Json -Compress`

func (s *Service) readSystemInfo(ctx context.Context) (*SystemInfo, error) {
	res, err := s.shell.Run(ctx, systemInfoScript)
	if err != nil {
		return nil, fmt.Errorf("system info: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("system info: exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
	var raw struct {
		Version  string `json:"version"`
		Language string `json:"language"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Output)), &raw); err != nil {
		return nil, fmt.Errorf("system info: decode: %w", err)
	}
	w, h, err := s.windows.ScreenSize()
	if err != nil {
		return nil, fmt.Errorf("system info: screen size: %w", err)
	}
	return &SystemInfo{
		WindowsVersion: strings.TrimSpace(raw.Version),
		Language:       raw.Language,
		Encoding:       raw.Encoding,
		ScreenWidth:    w,
		ScreenHeight:   h,
	}, nil
}
