package assigner

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const candidatesQuery = "data.cilogon.candidates.aliases"

// DefaultCandidatePolicy derives alias eppns from the scope of the primary eppn. Every UM campus
// scope maps to umsystem.edu, and missouri.edu additionally maps to mizzou.edu.
const DefaultCandidatePolicy = `package cilogon.candidates

campus_domains := {"umh.edu", "umkc.edu", "mst.edu", "umsl.edu", "missouri.edu"}

default system_alias := []

system_alias := [sprintf("%s@umsystem.edu", [input.local_part])] if {
	input.scope in campus_domains
}

default alternate_alias := []

alternate_alias := [sprintf("%s@mizzou.edu", [input.local_part])] if {
	input.scope == "missouri.edu"
}

aliases := array.concat(system_alias, alternate_alias)
`

// CandidateRules evaluates a Rego policy producing the ordered alias eppns for a scope.
type CandidateRules struct {
	query rego.PreparedEvalQuery
}

// NewCandidateRules compiles policy, or DefaultCandidatePolicy when policy is empty.
// The policy must define data.cilogon.candidates.aliases as an array of strings.
func NewCandidateRules(ctx context.Context, policy string) (*CandidateRules, error) {
	if policy == "" {
		policy = DefaultCandidatePolicy
	}
	pq, err := rego.New(
		rego.Query(candidatesQuery),
		rego.Module("candidates.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile candidate policy: %w", err)
	}
	return &CandidateRules{query: pq}, nil
}

// Candidates returns eppn followed by the policy's aliases, in policy order, without duplicates.
func (r *CandidateRules) Candidates(ctx context.Context, eppn, localPart, scope string) ([]string, error) {
	input := map[string]interface{}{
		"eppn":       eppn,
		"local_part": localPart,
		"scope":      scope,
	}
	rs, err := r.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("eval candidate policy: %w", err)
	}

	out := []string{eppn}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return out, nil
	}
	aliases, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("candidate policy: aliases must be an array, got %T", rs[0].Expressions[0].Value)
	}
	seen := map[string]bool{eppn: true}
	for _, a := range aliases {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("candidate policy: alias must be a string, got %T", a)
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
