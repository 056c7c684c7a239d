package detectors

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"econlint/internal/models"
)

var semaphorePattern = regexp.MustCompile(`\bSemaphore\s*\(`)

// FanOutDetector flags concurrency primitives started without a cap.
type FanOutDetector struct {
	baseRule
	hasSemaphore bool
}

func NewFanOutDetector(filename string, source []byte, lines []string) *FanOutDetector {
	d := &FanOutDetector{
		baseRule:     newBaseRule(models.CodeUnboundedFanOut, "Unbounded fan-out", filename, source, lines),
		hasSemaphore: fileHasSemaphore(lines),
	}
	d.Handle(d.visitCall, KindCall)
	return d
}

// fileHasSemaphore is file-wide on purpose: the semaphore is usually built
// once at module level and used from other functions.
func fileHasSemaphore(lines []string) bool {
	for _, line := range lines {
		code, _, _ := strings.Cut(line, "#")
		if semaphorePattern.MatchString(code) {
			return true
		}
	}
	return false
}

func (d *FanOutDetector) visitCall(n *sitter.Node) {
	switch d.callName(n) {
	case "asyncio.gather", "gather":
		if HasSplatArg(n) && !d.hasSemaphore {
			d.addWarning(n, "asyncio.gather(*...) without Semaphore")
		}
	case "ThreadPoolExecutor", "concurrent.futures.ThreadPoolExecutor":
		if !HasKeyword(n, "max_workers", d.source) {
			d.addWarning(n, "ThreadPoolExecutor() without max_workers")
		}
	case "ProcessPoolExecutor", "concurrent.futures.ProcessPoolExecutor":
		if !HasKeyword(n, "max_workers", d.source) {
			d.addWarning(n, "ProcessPoolExecutor() without max_workers")
		}
	case "Pool", "multiprocessing.Pool":
		if len(PositionalArgs(n)) == 0 && !HasKeyword(n, "processes", d.source) {
			d.addWarning(n, "multiprocessing.Pool() without processes limit")
		}
	}
	d.WalkChildren(n)
}
