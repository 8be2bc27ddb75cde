package filter

import (
	"fmt"
	"regexp"
	"strings"

	"influxdb-listener/internal/domain"
)

// SamplerSeparator splits an explicit sampler list.
const SamplerSeparator = ";"

type Mode int

const (
	ModeRegex Mode = iota + 1
	ModeSet
)

// SampleFilter decides which samples are recorded. It is configured once
// during setup and only read afterwards.
type SampleFilter struct {
	mode     Mode
	pattern  *regexp.Regexp
	samplers map[string]struct{}
}

// NewRegexFilter records labels that match expr as a whole.
func NewRegexFilter(expr string) (*SampleFilter, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid sampler regex %q: %w", expr, err)
	}
	return &SampleFilter{mode: ModeRegex, pattern: re}, nil
}

// NewSetFilter records labels listed in the ';' separated samplers list.
func NewSetFilter(list string) *SampleFilter {
	names := strings.Split(list, SamplerSeparator)
	for len(names) > 0 && names[len(names)-1] == "" {
		names = names[:len(names)-1]
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return &SampleFilter{mode: ModeSet, samplers: set}
}

// New picks the mode from useRegex.
func New(list string, useRegex bool) (*SampleFilter, error) {
	if useRegex {
		return NewRegexFilter(list)
	}
	return NewSetFilter(list), nil
}

func (f *SampleFilter) Mode() Mode { return f.mode }

func (f *SampleFilter) ShouldRecord(label string) bool {
	switch f.mode {
	case ModeRegex:
		return f.pattern.MatchString(label)
	case ModeSet:
		_, ok := f.samplers[label]
		return ok
	default:
		return false
	}
}

// Flatten returns samples with, when includeSubResults is set, every nested
// sub-result placed right after its parent.
func Flatten(samples []domain.SampleRecord, includeSubResults bool) []domain.SampleRecord {
	if !includeSubResults {
		return samples
	}

	out := make([]domain.SampleRecord, 0, len(samples))
	var walk func(s domain.SampleRecord)
	walk = func(s domain.SampleRecord) {
		out = append(out, s)
		for _, sub := range s.SubResults {
			walk(sub)
		}
	}
	for _, s := range samples {
		walk(s)
	}
	return out
}
