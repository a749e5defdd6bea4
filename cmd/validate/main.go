// Command validate checks captured consumer payloads against the wire
// contract: slot presence, geo and device invariants, the privacy rules for
// the advertising identifier, and optionally consistency with the device
// profile the bridge ran with.
//
// A capture file holds one JSON object per line, as a page would record it:
//
//	{"bwsMobile":{...},"bwsGeo":{...},"bwsDevice":{...},"bwsdk":{...}}
//
// Run it as:
//
//	go run ./cmd/validate -captures data/captures.jsonl -profile profiles/pixel.yaml
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/adcontext-bridge/internal/adapter/deviceprofile"
)

// phase collects the violations found by one group of checks.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	capturesPath := flag.String("captures", "", "path to a JSON-lines capture file")
	profilePath := flag.String("profile", "", "device profile the captures were produced with (optional)")
	flag.Parse()

	if *capturesPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run(*capturesPath, *profilePath))
}

// run validates the capture file and prints a report to stdout. It returns
// the process exit code.
func run(capturesPath, profilePath string) int {
	captures, err := loadCaptures(capturesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: load captures: %v\n", err)
		return 1
	}

	phases := validate(captures)
	if profilePath != "" {
		profile, err := deviceprofile.Load(profilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "validate: load profile: %v\n", err)
			return 1
		}
		phases = append(phases, validateProfileConsistency(captures, profile))
	}

	if !report(os.Stdout, phases, len(captures)) {
		return 1
	}
	return 0
}

// report writes a summary table followed by the violations of every failed
// phase. It returns true when all phases passed.
func report(w io.Writer, phases []*phase, captures int) bool {
	fmt.Fprintf(w, "validated %d captures\n\n", captures)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	failed := 0
	for _, p := range phases {
		verdict := "ok"
		if !p.passed() {
			verdict = fmt.Sprintf("FAIL %d", len(p.errors))
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\n", p.name, verdict)
	}
	_ = tw.Flush()

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", p.name)
		for _, e := range p.errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}

	if failed > 0 {
		fmt.Fprintf(w, "\n%d of %d phases failed\n", failed, len(phases))
		return false
	}
	fmt.Fprintln(w, "\nall phases passed")
	return true
}

// capture is one recorded set of consumer globals. Slots stay raw so that
// missing and null can be told apart.
type capture struct {
	line  int
	slots map[string]json.RawMessage
}

func loadCaptures(path string) ([]capture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var out []capture
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var slots map[string]json.RawMessage
		if err := json.Unmarshal(b, &slots); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, capture{line: line, slots: slots})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no captures in %s", path)
	}
	return out, nil
}
