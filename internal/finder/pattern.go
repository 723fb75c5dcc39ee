package finder

import (
	"context"
	"fmt"
	"regexp"
)

// Pattern finds regions with a regular expression whose first three groups
// capture (prefix, body, suffix). The region is the body.
type Pattern struct {
	rule string
	re   *regexp.Regexp
}

// NewPattern compiles rule. It returns an *InvalidPatternError when rule does
// not compile or has fewer than three groups.
func NewPattern(rule string) (*Pattern, error) {
	re, err := regexp.Compile(rule)
	if err != nil {
		return nil, &InvalidPatternError{Rule: rule, Err: err}
	}
	if re.NumSubexp() < 3 {
		return nil, &InvalidPatternError{
			Rule: rule,
			Err:  fmt.Errorf("need 3 capture groups (prefix, body, suffix), got %d", re.NumSubexp()),
		}
	}
	return &Pattern{rule: rule, re: re}, nil
}

// Rule returns the source of the pattern.
func (p *Pattern) Rule() string { return p.rule }

// Find scans src from the start and returns the body of the first match
// whose span contains cursor, ends included.
func (p *Pattern) Find(ctx context.Context, src string, cursor int) (Region, bool, error) {
	for _, m := range p.re.FindAllStringSubmatchIndex(src, -1) {
		if err := ctx.Err(); err != nil {
			return Region{}, false, err
		}
		if m[2] < 0 || m[4] < 0 || m[6] < 0 {
			continue
		}
		if m[0] <= cursor && cursor <= m[1] {
			return Region{Start: m[4], End: m[5]}, true, nil
		}
		if m[0] > cursor {
			break
		}
	}
	return Region{}, false, nil
}
