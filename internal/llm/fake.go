// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"strings"
)

// fakeProvider is a deterministic offline backend for tests and dry
// wiring. Translation requests echo every entry with a marker-visible
// prefix; summary requests return a fixed Markdown document.
type fakeProvider struct{}

func (fakeProvider) Name() string { return ProviderFake }

func (fakeProvider) Complete(_ context.Context, req completionRequest) (string, error) {
	if strings.Contains(req.System, "summarizer") {
		return "# Summary\n\nThis is a generated summary.\n\n- key point one\n- key point two\n", nil
	}

	blocks := strings.Split(req.User, subtitleSeparator)
	var b strings.Builder
	first := true
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
			continue
		}
		if !first {
			b.WriteString("\n" + subtitleSeparator + "\n")
		}
		first = false
		b.WriteString(lines[0])
		b.WriteString("\n")
		for _, line := range lines[1:] {
			b.WriteString("translated: " + line + "\n")
		}
	}
	return b.String(), nil
}
