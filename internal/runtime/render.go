package runtime

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
)

const barWidth = 20

// ProgressBar renders a 20-cell bar with the rounded percentage.
// An empty protocol is reported as fully done.
func ProgressBar(completed, total int) string {
	ratio := 1.0
	if total > 0 {
		ratio = math.Min(float64(completed)/float64(total), 1)
	}
	filled := int(math.Round(ratio * barWidth))
	percent := int(math.Round(ratio * 100))
	return fmt.Sprintf("[%s%s] %d%%", strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), percent)
}

func renderProgress(exec *domain.Execution, now time.Time) string {
	progress := exec.Progress()

	var b strings.Builder
	fmt.Fprintf(&b, "\n📋 **%s**\n", exec.Protocol.Name)
	fmt.Fprintf(&b, "%s\n", ProgressBar(progress.Completed, progress.Total))
	fmt.Fprintf(&b, "Progress: %d/%d steps\n\n", progress.Completed, progress.Total)

	for i, step := range exec.Protocol.Steps {
		status := "⏳"
		switch {
		case exec.IsStepComplete(step.ID):
			status = "✅"
		case i == progress.CurrentIndex:
			status = "🔄"
		}
		fmt.Fprintf(&b, "%s Step %d: %s\n", status, i+1, step.Name)

		if i != progress.CurrentIndex {
			continue
		}
		if step.Description != "" {
			fmt.Fprintf(&b, "   📝 %s\n", step.Description)
		}
		if step.Command != "" {
			fmt.Fprintf(&b, "   > %s\n", RenderCommand(step.Command, exec.Context, now))
		}
	}
	return b.String()
}

func renderStep(step domain.Step, c domain.Context, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n🎯 **Next Step: %s**\n", step.Name)
	if step.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n", step.Description)
	}
	if step.Command != "" {
		b.WriteString("\n**Command to execute:**\n")
		fmt.Fprintf(&b, "```\n%s\n```\n", RenderCommand(step.Command, c, now))
	}
	if step.Validation != "" {
		fmt.Fprintf(&b, "\n✔️ **Validation:** %s\n", step.Validation)
	}
	return b.String()
}

func renderSummary(exec *domain.Execution, now time.Time) string {
	minutes := int(math.Round(now.Sub(exec.StartedAt).Minutes()))
	progress := exec.Progress()

	var b strings.Builder
	b.WriteString("\n## Protocol Execution Summary\n\n")
	fmt.Fprintf(&b, "**Protocol:** %s\n", exec.Protocol.Name)
	fmt.Fprintf(&b, "**Duration:** %d minutes\n", minutes)
	fmt.Fprintf(&b, "**Steps Completed:** %d/%d\n\n", progress.Completed, progress.Total)

	results := exec.Results()
	if len(results) == 0 {
		return b.String()
	}
	b.WriteString("### Results\n")
	for _, step := range exec.Protocol.Steps {
		r, ok := results[step.ID]
		if !ok {
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			data = []byte(fmt.Sprintf("%q", fmt.Sprint(r)))
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", step.Name, data)
	}
	return b.String()
}
