package lp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteLP writes a human readable dump of the model in CPLEX LP format: the
// objective, one line per named constraint, bounds and integrality sections.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\* %s *\\\n", m.Name)
	fmt.Fprintln(bw, m.Direction.String())
	fmt.Fprintf(bw, "%s: %s\n", m.ObjectiveName, formatExpr(m.objective))

	fmt.Fprintln(bw, "Subject To")
	for _, c := range m.constraints {
		if (c.Expr == nil || c.Expr.Len() == 0) && len(m.vars) > 0 {
			// LP readers reject a row without variables.
			fmt.Fprintf(bw, "%s: 0 %s %s %s\n", c.Name, m.vars[0].Name, c.Sense, formatNumber(c.RHS))
			continue
		}
		fmt.Fprintln(bw, c.String())
	}

	var bounds, binaries, generals []string
	for _, v := range m.vars {
		switch v.Kind {
		case Binary:
			binaries = append(binaries, v.Name)
			continue
		case Integer:
			generals = append(generals, v.Name)
		}
		if line := boundLine(v); line != "" {
			bounds = append(bounds, line)
		}
	}

	if len(bounds) > 0 {
		fmt.Fprintln(bw, "Bounds")
		for _, line := range bounds {
			fmt.Fprintln(bw, line)
		}
	}
	if len(generals) > 0 {
		fmt.Fprintln(bw, "Generals")
		fmt.Fprintln(bw, strings.Join(generals, " "))
	}
	if len(binaries) > 0 {
		fmt.Fprintln(bw, "Binaries")
		fmt.Fprintln(bw, strings.Join(binaries, " "))
	}
	fmt.Fprintln(bw, "End")

	return bw.Flush()
}

// String renders the model as WriteLP would.
func (m *Model) String() string {
	var sb strings.Builder
	_ = m.WriteLP(&sb)
	return sb.String()
}

func boundLine(v *Var) string {
	lowerInf := math.IsInf(v.Lower, -1)
	upperInf := math.IsInf(v.Upper, 1)
	switch {
	case lowerInf && upperInf:
		return fmt.Sprintf("%s free", v.Name)
	case v.Lower == v.Upper:
		return fmt.Sprintf("%s = %s", v.Name, formatNumber(v.Lower))
	case upperInf:
		return fmt.Sprintf("%s >= %s", v.Name, formatNumber(v.Lower))
	case lowerInf:
		return fmt.Sprintf("-inf <= %s <= %s", v.Name, formatNumber(v.Upper))
	default:
		return fmt.Sprintf("%s <= %s <= %s", formatNumber(v.Lower), v.Name, formatNumber(v.Upper))
	}
}

func formatExpr(e *Expr) string {
	if e == nil || (len(e.terms) == 0 && e.constant == 0) {
		return "0"
	}

	var sb strings.Builder
	for i, t := range e.terms {
		coef := t.Coef
		switch {
		case i == 0 && coef < 0:
			sb.WriteString("- ")
			coef = -coef
		case i > 0 && coef < 0:
			sb.WriteString(" - ")
			coef = -coef
		case i > 0:
			sb.WriteString(" + ")
		}
		if coef != 1 {
			sb.WriteString(formatNumber(coef))
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Var.Name)
	}
	if e.constant != 0 {
		if len(e.terms) > 0 {
			if e.constant < 0 {
				sb.WriteString(" - ")
			} else {
				sb.WriteString(" + ")
			}
			sb.WriteString(formatNumber(math.Abs(e.constant)))
		} else {
			sb.WriteString(formatNumber(e.constant))
		}
	}
	return sb.String()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', 12, 64)
}
