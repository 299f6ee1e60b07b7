package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/community/pkg/config"
	"github.com/zfogg/sidechain/community/pkg/realtime"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

// GetOutputFormat returns the configured output format
func GetOutputFormat() OutputFormat {
	switch config.GetString("output.format") {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ValidateOutputFormat checks if format is valid
func ValidateOutputFormat(format string) bool {
	return format == "json" || format == "table" || format == "text"
}

// Printer renders command results and realtime events.
type Printer struct {
	w      io.Writer
	format OutputFormat
}

// New writes to w in the given format.
func New(w io.Writer, format OutputFormat) *Printer {
	return &Printer{w: w, format: format}
}

// Stdout prints to the color-aware stdout in the configured format.
func Stdout() *Printer {
	return New(color.Output, GetOutputFormat())
}

// Format returns the printer's format.
func (p *Printer) Format() OutputFormat {
	return p.format
}

// Record outputs a single record. Keys are printed in sorted order.
func (p *Printer) Record(title string, record map[string]interface{}) error {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch p.format {
	case FormatJSON:
		return p.JSON(record)
	case FormatTable:
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, fmt.Sprintf("%v", record[k])})
		}
		p.Table([]string{"Field", "Value"}, rows)
		return nil
	default:
		if title != "" {
			fmt.Fprintf(p.w, "%s:\n", title)
		}
		bold := color.New(color.Bold)
		for _, k := range keys {
			bold.Fprint(p.w, k+": ")
			fmt.Fprintf(p.w, "%v\n", record[k])
		}
		return nil
	}
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(data))
	return err
}

// Table writes an aligned table with a bold header row.
func (p *Printer) Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)

	for i, h := range headers {
		bold.Fprint(w, h)
		if i < len(headers)-1 {
			fmt.Fprint(w, "\t")
		}
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		for i, cell := range row {
			fmt.Fprint(w, cell)
			if i < len(row)-1 {
				fmt.Fprint(w, "\t")
			}
		}
		fmt.Fprintln(w)
	}

	w.Flush()
}

type eventRecord struct {
	Type  realtime.MessageType `json:"type"`
	At    string               `json:"at"`
	Event realtime.Event       `json:"event"`
}

// Event prints one realtime event. at stamps the line; StateChanged events
// carry their own time.
func (p *Printer) Event(ev realtime.Event, at time.Time) error {
	if sc, ok := ev.(realtime.StateChanged); ok && !sc.At.IsZero() {
		at = sc.At
	}
	if p.format == FormatJSON {
		data, err := json.Marshal(eventRecord{Type: ev.Kind(), At: at.UTC().Format(time.RFC3339), Event: ev})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	}

	fmt.Fprintf(p.w, "%s ", at.Local().Format("15:04:05"))
	eventColor(ev).Fprintf(p.w, "%-20s", ev.Kind())
	_, err := fmt.Fprintf(p.w, " %s\n", Describe(ev))
	return err
}

func eventColor(ev realtime.Event) *color.Color {
	switch e := ev.(type) {
	case realtime.StateChanged:
		if e.To == realtime.StateFailed {
			return color.New(color.FgRed)
		}
		return color.New(color.FgYellow)
	case realtime.ServerError, realtime.VideoFailed:
		return color.New(color.FgRed)
	case realtime.NotificationNew:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgCyan)
	}
}

// Describe summarizes an event on one line.
func Describe(ev realtime.Event) string {
	switch e := ev.(type) {
	case realtime.StateChanged:
		s := fmt.Sprintf("%s -> %s", e.From, e.To)
		if e.Attempt > 0 {
			s += fmt.Sprintf(" (attempt %d)", e.Attempt)
		}
		if e.Err != "" {
			s += ": " + e.Err
		}
		return s
	case realtime.NotificationNew:
		return fmt.Sprintf("%s: %s", e.Title, e.Message)
	case realtime.PostCreated:
		return fmt.Sprintf("%s %q by %s", e.ID, e.Title, e.AuthorName)
	case realtime.PostUpdated:
		return fmt.Sprintf("%s %q", e.ID, e.Title)
	case realtime.PostDeleted:
		return e.ID
	case realtime.CommentCreated:
		return fmt.Sprintf("%s on %s by %s", e.ID, e.PostID, e.AuthorName)
	case realtime.CommentDeleted:
		return fmt.Sprintf("%s on %s", e.ID, e.PostID)
	case realtime.LikeUpdated:
		return fmt.Sprintf("%s %s now has %d likes", e.TargetType, e.TargetID, e.LikeCount)
	case realtime.VideoReady:
		return fmt.Sprintf("%s %q", e.ID, e.Title)
	case realtime.VideoFailed:
		return fmt.Sprintf("%s %q: %s", e.ID, e.Title, e.ErrorMessage)
	case realtime.MemberJoined:
		return fmt.Sprintf("%s (%s)", e.UserName, e.RoleName)
	case realtime.MemberLeft:
		return e.UserName
	case realtime.Connected:
		return fmt.Sprintf("user %s in %s", e.UserID, e.TenantID)
	case realtime.ServerError:
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	default:
		return ""
	}
}

// Snapshot prints the connection manager's observable state.
func (p *Printer) Snapshot(s realtime.Snapshot) error {
	record := map[string]interface{}{
		"state":             s.State.String(),
		"tenant":            s.TenantID,
		"reconnect_attempt": s.ReconnectAttempt,
		"fallback_polling":  s.UsingFallbackPolling,
		"messages_received": s.Stats.MessagesReceived,
		"messages_sent":     s.Stats.MessagesSent,
		"reconnects":        s.Stats.ReconnectCount,
	}
	if s.LastError != "" {
		record["last_error"] = s.LastError
	}
	if !s.Stats.ConnectedAt.IsZero() {
		record["connected_at"] = s.Stats.ConnectedAt.UTC().Format(time.RFC3339)
	}
	return p.Record("Connection", record)
}

// Success prints a green line to the printer's writer. JSON output skips it.
func (p *Printer) Success(msg string, args ...interface{}) {
	if p.format == FormatJSON {
		return
	}
	color.New(color.FgGreen).Fprintf(p.w, msg+"\n", args...)
}

// Info prints a cyan line to the printer's writer. JSON output skips it.
func (p *Printer) Info(msg string, args ...interface{}) {
	if p.format == FormatJSON {
		return
	}
	color.New(color.FgCyan).Fprintf(p.w, msg+"\n", args...)
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(color.Output, msg+"\n", args...)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(color.Error, "Error: "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(color.Output, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(color.Error, "Warning: "+msg+"\n", args...)
}
