package output

import (
	"fmt"
	"time"

	"github.com/mona-actions/gh-orgtools/internal/ratelimit"
	"github.com/pterm/pterm"
)

const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// PrintSectionHeader prints a prominent section header with separator.
func PrintSectionHeader(title string) {
	pterm.Println()
	pterm.DefaultSection.Println(title)
}

// PrintOrgHeader prints the organization header with styling.
func PrintOrgHeader(orgName string) {
	pterm.Println()
	pterm.Info.Println(separator)
	pterm.Info.Printf("🏢 Organization: %s\n", orgName)
	pterm.Info.Println(separator)
	pterm.Println()
}

// CompletionSummary holds the final summary information.
type CompletionSummary struct {
	Command    string
	Items      int
	OutputFile string
	Duration   time.Duration
	APICalls   int64
	// Quota holds the last snapshot per resource; missing resources are
	// not printed.
	Quota    map[ratelimit.Resource]ratelimit.Status
	Warnings int
}

// PrintCompletionSummary prints the final completion summary.
func PrintCompletionSummary(summary CompletionSummary) {
	pterm.Println()
	pterm.Success.Println(separator)
	pterm.Success.Printf("✨ %s complete!\n", summary.Command)
	pterm.Success.Println(separator)
	pterm.Println()

	pterm.Info.Println("📈 Summary")
	pterm.Info.Printf("   ├─ Items: %s\n", FormatNumber(int64(summary.Items)))
	if summary.OutputFile != "" {
		pterm.Info.Printf("   ├─ Output file: %s\n", summary.OutputFile)
	}
	pterm.Info.Printf("   └─ Duration: %s\n", FormatDuration(summary.Duration))
	pterm.Println()

	pterm.Info.Printf("🌐 API Usage: %s calls\n", FormatNumber(summary.APICalls))
	var shown []ratelimit.Status
	for _, res := range ratelimit.Resources {
		if st, ok := summary.Quota[res]; ok {
			shown = append(shown, st)
		}
	}
	for i, st := range shown {
		branch := "├─"
		if i == len(shown)-1 {
			branch = "└─"
		}
		pterm.Info.Printf("   %s %s: %s/%s remaining, resets in %s\n", branch, st.Resource,
			FormatNumber(int64(st.Remaining)), FormatNumber(int64(st.Limit)), FormatTimeUntil(st.ResetAt))
	}
	pterm.Println()

	if summary.Warnings > 0 {
		pterm.Warning.Printf("⚠️  Warnings: %d (check logs for details)\n", summary.Warnings)
		pterm.Println()
	}
}

// FormatDuration formats a duration in a human-readable way (e.g., "5m30s", "2h15m").
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// FormatNumber formats a number with thousand separators (e.g., "1,234,567").
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, digit := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(digit))
	}
	return string(result)
}

// FormatTimeUntil formats the time until t (e.g., "5m", "2h15m").
func FormatTimeUntil(t time.Time) string {
	d := time.Until(t)
	if d < 0 {
		return "now"
	}
	if d < time.Hour {
		return FormatDuration(d.Truncate(time.Minute))
	}
	return FormatDuration(d)
}
