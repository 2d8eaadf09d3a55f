package agentfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Errors for agent file parsing.
var (
	// ErrSourceUnavailable indicates the agent file could not be read.
	// Distinct from an empty or malformed file: a missing source is a
	// collaborator failure, never masked as empty configuration.
	ErrSourceUnavailable = errors.New("agent definition source unavailable")
)

// startToken opens a section. The remainder of the line up to the trailing
// marker is the section name.
const (
	startToken    = "==== START:"
	sectionSuffix = "===="
)

// configSections are non-agent sections skipped by the parser.
var configSections = map[string]bool{
	"settings":     true,
	"modes":        true,
	"orchestrator": true,
}

// isConfigSection reports whether a section carries orchestrator
// configuration rather than an agent definition.
func isConfigSection(name string) bool {
	return configSections[name] || strings.HasPrefix(name, "config")
}

// Parse turns raw agent-definition text into descriptors, in declaration
// order. Sections missing Title or Name are dropped silently; they are
// malformed content, not errors. Parse never fails: an unreadable source is
// the caller's concern (see ParseFile).
func Parse(raw string) []*Descriptor {
	var out []*Descriptor

	chunks := strings.Split(raw, startToken)
	// chunks[0] is preamble before the first marker; skip it.
	for _, chunk := range chunks[1:] {
		name, body, ok := splitSection(chunk)
		if !ok || isConfigSection(name) {
			continue
		}

		d := parseSection(name, body)
		if !d.Valid() {
			continue
		}
		out = append(out, d)
	}

	return out
}

// ParseFile reads and parses an agent file from disk.
func ParseFile(path string) ([]*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	return Parse(string(raw)), nil
}

// splitSection extracts the section name from the first line of a chunk and
// returns the remaining body.
func splitSection(chunk string) (name, body string, ok bool) {
	header, body, found := strings.Cut(chunk, "\n")
	if !found {
		header = chunk
	}

	name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(header), sectionSuffix))
	if name == "" {
		return "", "", false
	}
	return name, body, true
}

// parseSection line-scans a section body for recognized labeled fields.
func parseSection(name, body string) *Descriptor {
	d := &Descriptor{ID: name}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch label {
		case "Title":
			d.Title = value
		case "Name":
			d.Name = value
		case "Description":
			d.Description = value
		case "Persona":
			d.Persona = value
		case "Coordination":
			d.Coordination = value
		case "Tasks":
			d.Tasks = splitList(value)
		case "HandoffFrom":
			d.HandoffFrom = splitList(value)
		case "HandoffTo":
			d.HandoffTo = splitList(value)
		case "Validations":
			d.Validations = splitList(value)
		case "Priority":
			if n, err := strconv.Atoi(value); err == nil {
				d.Priority = n
			}
		}
		// Unrecognized labels are ignored for forward compatibility.
	}

	return d
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
