package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profile label keys. Values must stay low-cardinality: record ids and
// document numbers never become labels.
const (
	ProfileLabelRoute  = "route"
	ProfileLabelMethod = "method"
	ProfileLabelJob    = "job"
)

// maxProfileLabelValue caps label values
const maxProfileLabelValue = 128

var highCardinalityLabels = map[string]bool{
	"record_id":   true,
	"report_id":   true,
	"document_no": true,
	"request_id":  true,
	"trace_id":    true,
	"span_id":     true,
}

// WithProfileLabels runs fn with labels attached to its CPU samples.
// Labels without a value and high-cardinality keys are dropped.
func WithProfileLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := labelPairs(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// labelPairs flattens labels into key, value pairs sorted by key
func labelPairs(labels map[string]string) []string {
	clean := make(map[string]string, len(labels))
	for k, v := range labels {
		key := labelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if len(v) > maxProfileLabelValue {
			v = v[:maxProfileLabelValue]
		}
		clean[key] = v
	}
	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, clean[k])
	}
	return pairs
}

// labelKey lowercases k and keeps only [a-z0-9_]
func labelKey(k string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(k) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteRune(c)
		case c == ' ' || c == '-':
			b.WriteByte('_')
		}
	}
	return b.String()
}

// RouteLabels labels an HTTP request by its route pattern
func RouteLabels(method, route string) map[string]string {
	return map[string]string{ProfileLabelMethod: method, ProfileLabelRoute: route}
}

// JobLabels labels a maintenance job run
func JobLabels(job string) map[string]string {
	return map[string]string{ProfileLabelJob: job}
}
