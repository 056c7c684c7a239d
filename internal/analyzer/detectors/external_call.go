package detectors

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"econlint/internal/models"
)

// HTTP verbs that make "requests.<verb>" a network call rather than a method
// on a list that happens to be called requests.
var httpMethods = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true,
	"delete": true, "head": true, "options": true, "request": true,
}

var httpLibraryPrefixes = []string{
	"httpx.", "aiohttp.", "urllib.request.", "http.client.",
	"urllib3.", "asks.", "treq.", "grequests.",
}

// Matched as suffixes of the full dotted name.
var externalMethods = []string{
	// Database
	"cursor.execute", "cursor.executemany", "cursor.fetchone", "cursor.fetchall",
	"cursor.fetchmany", "connection.execute", "session.execute", "session.query",
	// AWS
	"s3.get_object", "s3.put_object", "s3.delete_object",
	"dynamodb.get_item", "dynamodb.put_item", "dynamodb.query",
	"sqs.send_message", "sqs.receive_message",
	"sns.publish",
}

var clientReceiverPattern = regexp.MustCompile(`(_client|_api|_service|_connection|_session|Client|Api|Service)$`)

// ExternalCallDetector flags network and database calls made inside loops.
type ExternalCallDetector struct {
	baseRule
	loopDepth int
}

func NewExternalCallDetector(filename string, source []byte, lines []string) *ExternalCallDetector {
	d := &ExternalCallDetector{
		baseRule: newBaseRule(models.CodeExternalCallInLoop, "External call inside loop", filename, source, lines),
	}
	d.Handle(d.visitLoop, append([]NodeKind{KindFor, KindWhile}, comprehensionKinds...)...)
	d.Handle(d.visitCall, KindCall)
	return d
}

func (d *ExternalCallDetector) visitLoop(n *sitter.Node) {
	d.loopDepth++
	d.WalkChildren(n)
	d.loopDepth--
}

func (d *ExternalCallDetector) visitCall(n *sitter.Node) {
	if d.loopDepth > 0 {
		if name := d.callName(n); isExternalCall(name) {
			d.addWarning(n, name+"() called inside loop")
		}
	}
	d.WalkChildren(n)
}

// isExternalCall classifies a dotted call name. Plain method names like
// get or update only count when the receiver looks like a client, so that
// dict.get() and list.remove() stay quiet.
func isExternalCall(name string) bool {
	if name == "" {
		return false
	}

	for _, prefix := range httpLibraryPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	if strings.HasPrefix(name, "requests.") {
		if httpMethods[strings.ToLower(lastSegment(name))] {
			return true
		}
	}

	for _, method := range externalMethods {
		if strings.HasSuffix(name, method) {
			return true
		}
	}

	// Any method on a client-like receiver counts, the API verbs included.
	receiver, _, ok := splitReceiver(name)
	if !ok {
		return false
	}
	return clientReceiverPattern.MatchString(receiver)
}
