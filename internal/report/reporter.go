// Package report formats and delivers run summaries by email.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"dealersync/internal/store"

	"github.com/rs/zerolog"
)

// NotificationSink delivers a formatted message to a recipient.
type NotificationSink interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

var summaryTmpl = template.Must(template.New("summary").Parse(`<html>
<body>
<h2>Vehicle listing sync {{.StatusWord}}</h2>
<p>Target: <strong>{{.Entry.TargetID}}</strong> (trigger: {{.Entry.Trigger}})</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Total</th><th>Created</th><th>Updated</th><th>Deleted</th><th>Skipped</th><th>Duration</th></tr>
<tr><td>{{.Entry.TotalItems}}</td><td>{{.Entry.Created}}</td><td>{{.Entry.Updated}}</td><td>{{.Entry.Deleted}}</td><td>{{.Entry.Skipped}}</td><td>{{.Duration}}</td></tr>
</table>
{{if .Entry.Error}}<p><strong>Error:</strong> {{.Entry.Error}}</p>{{end}}
{{if .SkipReasons}}
<h3>Skipped items</h3>
<ul>
{{range $key, $reason := .SkipReasons}}<li><strong>{{$key}}</strong>: {{$reason}}</li>
{{end}}</ul>
{{end}}
{{if .MediaErrors}}
<h3>Media errors</h3>
<ul>
{{range $key, $errs := .MediaErrors}}<li><strong>{{$key}}</strong>: {{range $errs}}{{.}}; {{end}}</li>
{{end}}</ul>
{{end}}
</body>
</html>
`))

type summaryData struct {
	Entry       store.SyncLog
	StatusWord  string
	Duration    string
	SkipReasons map[string]string
	MediaErrors map[string][]string
}

// Reporter renders a run's audit entry as an HTML email and hands it to
// the sink. Delivery failures are returned to the caller, which treats
// them as non-fatal.
type Reporter struct {
	sink      NotificationSink
	recipient string
	logger    zerolog.Logger
}

func NewReporter(sink NotificationSink, recipient string, logger zerolog.Logger) *Reporter {
	return &Reporter{sink: sink, recipient: recipient, logger: logger}
}

func (r *Reporter) Report(ctx context.Context, entry store.SyncLog) error {
	if r.sink == nil || r.recipient == "" {
		return nil
	}

	subject := fmt.Sprintf("Listing sync %s: %s (%d created, %d updated, %d deleted, %d skipped)",
		statusWord(entry.Status), entry.TargetID, entry.Created, entry.Updated, entry.Deleted, entry.Skipped)

	body, err := RenderSummary(entry)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if err := r.sink.Send(ctx, r.recipient, subject, body); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	r.logger.Info().Str("target", entry.TargetID).Str("recipient", r.recipient).Msg("sync report sent")
	return nil
}

// RenderSummary produces the HTML body for one audit entry.
func RenderSummary(entry store.SyncLog) (string, error) {
	data := summaryData{
		Entry:      entry,
		StatusWord: statusWord(entry.Status),
		Duration:   (time.Duration(entry.DurationMS) * time.Millisecond).String(),
	}
	if len(entry.Details) > 0 {
		var details struct {
			SkipReasons map[string]string   `json:"skipped_reasons"`
			MediaErrors map[string][]string `json:"media_errors"`
		}
		// malformed details degrade to a summary without per-item lists
		_ = json.Unmarshal(entry.Details, &details)
		data.SkipReasons = details.SkipReasons
		data.MediaErrors = details.MediaErrors
	}

	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func statusWord(status string) string {
	if status == store.SyncStatusSuccess {
		return "completed"
	}
	return "failed"
}
