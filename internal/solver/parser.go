package solver

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

var (
	cycleRe   = regexp.MustCompile(`(?i)^\s*(?:scf\s+)?cycle\s+\d+\s*[:=]?\s*(?:e\s*=\s*)?(-?\d+\.\d+)`)
	gapRe     = regexp.MustCompile(`(?i)homo-lumo gap\s*[:=]\s*(-?\d+(?:\.\d+)?)`)
	restartRe = regexp.MustCompile(`(?i)restart file(?:\s+written)?\s*[:=]\s*(\S+)`)
)

// TextParser extracts a SolverReport from plain-text solver logs. It looks
// for per-cycle energy lines, the converged marker, the HOMO-LUMO gap, error
// text for memory/walltime/linear-dependence failures, WARNING lines, and a
// restart file reference.
type TextParser struct{}

// NewTextParser creates a TextParser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse scans the raw output. Only a completely empty log is an error; a log
// with no recognizable energy lines yields an empty trajectory, which the
// classifier treats as insufficient data.
func (p *TextParser) Parse(raw []byte) (*domain.SolverReport, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domain.ErrOutputMalformed
	}

	report := &domain.SolverReport{}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		lower := strings.ToLower(line)

		if m := cycleRe.FindStringSubmatch(line); m != nil {
			if e, err := strconv.ParseFloat(m[1], 64); err == nil {
				report.Trajectory = append(report.Trajectory, e)
			}
			continue
		}
		if m := gapRe.FindStringSubmatch(line); m != nil {
			if gap, err := strconv.ParseFloat(m[1], 64); err == nil {
				report.HomoLumoGapEv = &gap
			}
		}
		if m := restartRe.FindStringSubmatch(line); m != nil {
			report.RestartHandle = m[1]
		}

		switch {
		case strings.Contains(lower, "scf converged"),
			strings.Contains(lower, "convergence reached"):
			report.Converged = true
		case strings.Contains(lower, "out of memory"),
			strings.Contains(lower, "insufficient memory"),
			strings.Contains(lower, "memory limit"):
			report.MemoryError = true
		case strings.Contains(lower, "walltime exceeded"),
			strings.Contains(lower, "time limit reached"):
			report.Timeout = true
		case strings.Contains(lower, "linear depend"):
			report.LinearDependence = true
		}

		if strings.HasPrefix(strings.TrimSpace(line), "WARNING") {
			report.Warnings = append(report.Warnings, strings.TrimSpace(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.WrapEngineError(domain.ErrOutputMalformed.Code, "scan solver output", err)
	}
	return report, nil
}
