package solver

import (
	"testing"
)

const sampleLog = `CrystalMath solver 2.4
 cycle 1: E = -123.456789
 cycle 2: E = -123.567890
 cycle 3: E = -123.578901
 cycle 4: E = -123.579012
WARNING: density matrix extrapolation disabled
 HOMO-LUMO gap: 0.15 eV
 SCF converged after 4 cycles
 restart file written: wfn-0004.chk
`

func TestTextParserParse(t *testing.T) {
	p := NewTextParser()

	report, err := p.Parse([]byte(sampleLog))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(report.Trajectory) != 4 {
		t.Fatalf("Trajectory length = %d, want 4", len(report.Trajectory))
	}
	if report.Trajectory[0] != -123.456789 {
		t.Errorf("Trajectory[0] = %v, want -123.456789", report.Trajectory[0])
	}
	if !report.Converged {
		t.Error("Converged = false, want true")
	}
	if report.HomoLumoGapEv == nil || *report.HomoLumoGapEv != 0.15 {
		t.Errorf("HomoLumoGapEv = %v, want 0.15", report.HomoLumoGapEv)
	}
	if report.RestartHandle != "wfn-0004.chk" {
		t.Errorf("RestartHandle = %q, want wfn-0004.chk", report.RestartHandle)
	}
	if len(report.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one entry", report.Warnings)
	}
}

func TestTextParserErrorFlags(t *testing.T) {
	p := NewTextParser()

	report, err := p.Parse([]byte("cycle 1: E = -1.5\nERROR: out of memory in integral transformation\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !report.MemoryError {
		t.Error("MemoryError = false, want true")
	}

	report, err = p.Parse([]byte("cycle 1: E = -1.5\njob killed: walltime exceeded\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !report.Timeout {
		t.Error("Timeout = false, want true")
	}

	report, err = p.Parse([]byte("WARNING: linear dependence detected in AO basis\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !report.LinearDependence {
		t.Error("LinearDependence = false, want true")
	}
}

func TestTextParserEmptyOutput(t *testing.T) {
	p := NewTextParser()
	if _, err := p.Parse([]byte("  \n")); err == nil {
		t.Error("expected error for empty output, got nil")
	}
}
