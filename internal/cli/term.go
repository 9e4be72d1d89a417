package cli

import "github.com/fatih/color"

var (
	greenHighlight  = color.New(color.FgGreen).SprintFunc()
	redHighlight    = color.New(color.FgRed).SprintFunc()
	yellowHighlight = color.New(color.FgYellow).SprintFunc()
	underline       = color.New(color.Underline).SprintFunc()
)

func statusHighlight(status string) string {
	switch status {
	case "succeeded", "valid":
		return greenHighlight(status)
	case "failed", "invalid":
		return redHighlight(status)
	default:
		return yellowHighlight(status)
	}
}
