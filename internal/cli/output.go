package cli

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/MikeSquared-Agency/sayu/internal/event"
)

var (
	titleColor = color.New(color.FgHiCyan, color.Bold)
	okColor    = color.New(color.FgHiGreen)
	warnColor  = color.New(color.FgHiYellow)
	failColor  = color.New(color.FgHiRed)
	dimColor   = color.New(color.FgHiBlack)
)

// configureColor turns color off unless out is a terminal and NO_COLOR is
// unset.
func configureColor(out io.Writer) {
	color.NoColor = !useColor(out)
}

func useColor(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// eventLine renders an event as one line: time, source/kind, actor and the
// first line of its text.
func eventLine(e event.Event, width int) string {
	ts := time.UnixMilli(e.Timestamp).Local().Format("2006-01-02 15:04:05")
	text := strings.TrimSpace(e.Text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if r := []rune(text); width > 0 && len(r) > width {
		text = string(r[:width]) + "..."
	}
	label := string(e.Source) + "/" + string(e.Kind)
	if e.Actor != nil {
		label += " " + string(*e.Actor)
	}
	return ts + "  " + label + "  " + text
}
