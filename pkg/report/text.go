package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const ruleWidth = 64

type styles struct {
	header   lipgloss.Style
	met      lipgloss.Style
	violated lipgloss.Style
	muted    lipgloss.Style
}

// newStyles creates styles for w. Writers that are not color terminals get
// plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header:   r.NewStyle().Bold(true),
		met:      r.NewStyle().Foreground(lipgloss.Color("42")),
		violated: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// WriteText writes r in the report_checks layout followed by the summary
// table.
func WriteText(w io.Writer, r Report, digits int) error {
	st := newStyles(w)
	var b strings.Builder
	for i, p := range r.Paths {
		if i > 0 {
			b.WriteString("\n")
		}
		writePath(&b, st, p, digits)
	}
	if len(r.Summary) > 0 {
		if len(r.Paths) > 0 {
			b.WriteString("\n")
		}
		writeSummary(&b, st, r.Summary, digits)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func num(v float32, digits int) string {
	return fmt.Sprintf("%*.*f", digits+5, digits, v)
}

func writePath(b *strings.Builder, st styles, p PathRecord, digits int) {
	fmt.Fprintf(b, "%s %s\n", st.header.Render("Startpoint:"), p.Startpoint)
	fmt.Fprintf(b, "%s %s\n", st.header.Render("Endpoint:"), p.Endpoint)
	fmt.Fprintf(b, "%s %s\n", st.header.Render("Path Group:"), p.Group)
	fmt.Fprintf(b, "%s %s (%s)\n\n", st.header.Render("Path Type:"), p.Check, p.Type)

	blank := strings.Repeat(" ", digits+5)
	fmt.Fprintf(b, "%*s %*s   Description\n", digits+5, "Incr", digits+5, "Time")
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	if p.SourceClock != "" {
		fmt.Fprintf(b, "%s %s   clock %s\n", blank, blank, p.SourceClock)
	}
	for _, pt := range p.Points {
		desc := pt.Pin
		if pt.Role != "" {
			desc += " (" + pt.Role + ")"
		}
		if pt.Clock {
			desc = st.muted.Render(desc)
		}
		fmt.Fprintf(b, "%s %s %s %s\n", num(pt.Incr, digits), num(pt.Arrival, digits), pt.RF, desc)
	}
	fmt.Fprintf(b, "%s %s   data arrival time\n\n", blank, num(p.Arrival, digits))

	if p.Unconstrained() {
		fmt.Fprintf(b, "%s %s   %s\n", blank, blank, st.muted.Render("(path is unconstrained)"))
		return
	}
	if p.TargetClock != "" {
		fmt.Fprintf(b, "%s %s   clock %s\n", blank, num(p.TargetTime, digits), p.TargetClock)
	}
	if p.Uncertainty != 0 {
		fmt.Fprintf(b, "%s %s   clock uncertainty\n", blank, num(p.Uncertainty, digits))
	}
	if p.Crpr != 0 {
		fmt.Fprintf(b, "%s %s   clock reconvergence pessimism (%s)\n", blank, num(p.Crpr, digits), p.CrprPin)
	}
	if p.Margin != 0 {
		fmt.Fprintf(b, "%s %s   %s margin\n", blank, num(p.Margin, digits), p.Check)
	}
	if p.Borrow != 0 {
		fmt.Fprintf(b, "%s %s   time borrowed from endpoint\n", blank, num(p.Borrow, digits))
	}
	fmt.Fprintf(b, "%s %s   data required time\n", blank, num(p.Required, digits))
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")

	status := st.met.Render("(MET)")
	if p.Slack < 0 {
		status = st.violated.Render("(VIOLATED)")
	}
	fmt.Fprintf(b, "%s %s   slack %s\n", blank, num(p.Slack, digits), status)
}

func writeSummary(b *strings.Builder, st styles, sums []Summary, digits int) {
	w := digits + 7
	fmt.Fprintf(b, "%s\n", st.header.Render(fmt.Sprintf("%-6s %*s %*s %10s %10s  %s",
		"Check", w, "WNS", w, "TNS", "Endpoints", "Violations", "Worst pin")))
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	for _, s := range sums {
		fmt.Fprintf(b, "%-6s %*.*f %*.*f %10s %10s  %s\n",
			s.Check, w, digits, s.WorstSlack, w, digits, s.TNS,
			humanize.Comma(int64(s.Endpoints)), humanize.Comma(int64(s.Violations)), s.WorstPin)
	}
}
