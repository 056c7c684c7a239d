package models

import (
	"sort"
	"strings"
)

// Rule codes.
const (
	CodeExternalCallInLoop = "ECON001"
	CodeUnboundedRetry     = "ECON002"
	CodeNPlusOne           = "ECON003"
	CodeUnboundedFanOut    = "ECON004"
)

// Warning is a single finding reported by a rule. Values are never mutated
// after a rule creates them.
type Warning struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Pattern     string `json:"pattern"`
	Explanation string `json:"explanation"`
}

// SkippedFile records a file the analyzer could not parse.
type SkippedFile struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

type AnalysisResult struct {
	Files            []string            `json:"files_analyzed"`
	Skipped          []SkippedFile       `json:"files_skipped,omitempty"`
	Warnings         []Warning           `json:"warnings"`
	Suppressed       int                 `json:"suppressed"`
	WarningsByCode   map[string]int      `json:"warnings_by_code"`
	SourceLines      map[string][]string `json:"-"`
	AnalysisDuration string              `json:"analysis_duration"`
}

func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		Files:          make([]string, 0),
		Warnings:       make([]Warning, 0),
		WarningsByCode: make(map[string]int),
		SourceLines:    make(map[string][]string),
	}
}

func (ar *AnalysisResult) AddWarning(w Warning) {
	ar.Warnings = append(ar.Warnings, w)
	ar.WarningsByCode[w.Code]++
}

// SetWarnings replaces the warning list and recounts the per-code totals.
func (ar *AnalysisResult) SetWarnings(ws []Warning) {
	ar.Warnings = ws
	ar.WarningsByCode = make(map[string]int, len(ws))
	for _, w := range ws {
		ar.WarningsByCode[w.Code]++
	}
}

// SortWarnings orders warnings by file, line and code. The sort is stable so
// warnings with equal keys keep the order in which their rule visited them.
func SortWarnings(ws []Warning) {
	sort.SliceStable(ws, func(i, j int) bool {
		a, b := ws[i], ws[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Code < b.Code
	})
}

// Explanations holds the static explanation text shown under each finding.
var Explanations = map[string]string{
	CodeExternalCallInLoop: `Economic risk: Each loop iteration incurs API/network cost.
At 1000 iterations, this becomes 1000 billable calls.
Under partial failure, retries multiply this further.

Even if the collection is small today, data growth or
upstream changes can make this unbounded.

Consider: Batch the calls, or add explicit bounds.`,
	CodeUnboundedRetry: `Economic risk: Without a retry limit, transient failures
cause infinite retry loops. Each retry costs money and
keeps connections/resources open.

A downstream outage becomes a self-inflicted denial of
service with unbounded costs.

Consider: Set stop_after_attempt(n) or a max retry count.`,
	CodeNPlusOne: `Economic risk: This is an N+1 pattern. For N items in the
collection, you make N separate calls instead of 1 batch.

At N=1000, you pay for 1000 round trips instead of 1.
Latency also multiplies: 1000 × 50ms = 50 seconds.

Consider: Use a batch API, or prefetch all data at once.`,
	CodeUnboundedFanOut: `Economic risk: Unbounded concurrency can spawn thousands
of simultaneous requests. APIs rate-limit or charge per
call, and you may exhaust connection pools.

A burst of 10,000 concurrent requests can trigger
rate limiting, increased costs, or cascading failures.

Consider: Use a Semaphore or set max_workers explicitly.`,
}

// Explanation returns the explanation text for code, or "" if unknown.
func Explanation(code string) string {
	return Explanations[strings.ToUpper(code)]
}
