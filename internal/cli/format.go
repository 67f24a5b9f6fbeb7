package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/designscan/internal/models"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// progressLine is the one-line plain rendering of a job's progress.
func progressLine(job *models.Job) string {
	p := job.Progress
	line := fmt.Sprintf("[%s] %d/%d frames (%d%%)", job.Status, p.AnalyzedItems, p.TotalItems, p.Percentage())
	if p.CurrentItemName != "" && !job.Status.IsTerminal() {
		line += " " + p.CurrentItemName
	}
	return line
}

func resultSummary(r *models.AggregatedResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Frames analyzed:   %d/%d\n", r.AnalyzedFrames, r.TotalFrames)
	if r.SkippedFrames > 0 {
		fmt.Fprintf(&b, "  Frames skipped:    %d\n", r.SkippedFrames)
	}
	if r.IndexedFrames > 0 {
		fmt.Fprintf(&b, "  Frames indexed:    %d\n", r.IndexedFrames)
	}
	fmt.Fprintf(&b, "  Components:        %d\n", r.Summary.TotalComponents)
	fmt.Fprintf(&b, "  Business rules:    %d\n", r.Summary.TotalRules)
	fmt.Fprintf(&b, "  States:            %d\n", r.Summary.TotalStates)
	fmt.Fprintf(&b, "  Interactions:      %d\n", r.Summary.TotalInteractions)
	fmt.Fprintf(&b, "  Duration:          %s\n", (time.Duration(r.DurationMs) * time.Millisecond).Round(time.Millisecond))
	return b.String()
}

func printJobTable(w io.Writer, list []models.Job) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return
	}

	fmt.Fprintf(w, "%-36s %-11s %-10s %-10s %s\n", "ID", "STATUS", "PROGRESS", "CREATED", "FILE")
	fmt.Fprintln(w, strings.Repeat("-", 84))
	for _, job := range list {
		progress := ""
		if job.Progress.TotalItems > 0 {
			progress = fmt.Sprintf("%d/%d", job.Progress.AnalyzedItems, job.Progress.TotalItems)
		}
		file := job.Source.FileKey
		if file == "" {
			file = job.Source.URL
		}
		fmt.Fprintf(w, "%-36s %-11s %-10s %-10s %s\n", job.ID, job.Status, progress, job.CreatedAt.Local().Format("15:04:05"), file)
	}
}

func printJob(w io.Writer, job *models.Job) {
	fmt.Fprintf(w, "Job: %s\n", job.ID)
	fmt.Fprintf(w, "  Source: %s\n", job.Source.URL)
	fmt.Fprintf(w, "  Status: %s\n", job.Status)
	if job.Progress.TotalItems > 0 {
		fmt.Fprintf(w, "  Progress: %d/%d (%d%%)\n", job.Progress.AnalyzedItems, job.Progress.TotalItems, job.Progress.Percentage())
	}
	fmt.Fprintf(w, "  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil && job.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "  Duration: %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond))
	}
	if job.Error != nil && *job.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", *job.Error)
	}
	if job.Result != nil {
		fmt.Fprintln(w, "\nResult:")
		fmt.Fprint(w, resultSummary(job.Result))
	}
}

// writeExport renders result in the requested format.
func writeExport(w io.Writer, result *models.AggregatedResult, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, renderMarkdown(result))
		return err
	default:
		return fmt.Errorf("unknown format %q (want json, yaml or markdown)", format)
	}
}

func renderMarkdown(r *models.AggregatedResult) string {
	var b strings.Builder

	title := r.FileName
	if title == "" {
		title = r.FileKey
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- File key: `%s`\n", r.FileKey)
	if r.RootNodeID != "" {
		fmt.Fprintf(&b, "- Root node: `%s`\n", r.RootNodeID)
	}
	fmt.Fprintf(&b, "- Frames: %d analyzed of %d\n", r.AnalyzedFrames, r.TotalFrames)
	fmt.Fprintf(&b, "- Components: %d, rules: %d, states: %d, interactions: %d\n",
		r.Summary.TotalComponents, r.Summary.TotalRules, r.Summary.TotalStates, r.Summary.TotalInteractions)

	if len(r.Summary.ComponentTypes) > 0 {
		b.WriteString("\n## Component types\n\n")
		for _, t := range slices.Sorted(maps.Keys(r.Summary.ComponentTypes)) {
			fmt.Fprintf(&b, "- %s: %d\n", t, r.Summary.ComponentTypes[t])
		}
	}

	for _, f := range r.Frames {
		name := f.FrameName
		if name == "" {
			name = f.FrameID
		}
		fmt.Fprintf(&b, "\n## %s\n\n", name)
		if f.Description != "" {
			fmt.Fprintf(&b, "%s\n", f.Description)
		}

		if len(f.Components) > 0 {
			b.WriteString("\n### Components\n\n")
			for _, c := range f.Components {
				line := "**" + c.Name + "**"
				if c.Type != "" {
					line += " (" + c.Type + ")"
				}
				if c.Interactive {
					line += " interactive"
				}
				if c.Description != "" {
					line += ": " + c.Description
				}
				fmt.Fprintf(&b, "- %s\n", line)
			}
		}
		if len(f.BusinessRules) > 0 {
			b.WriteString("\n### Business rules\n\n")
			for _, rule := range f.BusinessRules {
				fmt.Fprintf(&b, "- %s\n", rule)
			}
		}
		if len(f.States) > 0 {
			b.WriteString("\n### States\n\n")
			for _, s := range f.States {
				if s.Description != "" {
					fmt.Fprintf(&b, "- **%s**: %s\n", s.Name, s.Description)
				} else {
					fmt.Fprintf(&b, "- **%s**\n", s.Name)
				}
			}
		}
		if len(f.Interactions) > 0 {
			b.WriteString("\n### Interactions\n\n")
			for _, i := range f.Interactions {
				line := i.Trigger + " → " + i.Action
				if i.Target != "" {
					line += " (" + i.Target + ")"
				}
				fmt.Fprintf(&b, "- %s\n", line)
			}
		}
	}
	return b.String()
}
