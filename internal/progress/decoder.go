// -----------------------------------------------------------------------
// Progress protocol decoder
//
// A pipeline worker emits a single byte stream mixing free-text log lines
// with reserved-prefix machine lines. Marker lines start with "@@" followed
// by a tag and tab-separated fields:
//
//	@@SYNC\t<done>\t<total>
//	@@EXTRACT\t<done>\t<total>
//	@@RESUME_SYNC\t<skipped>
//	@@RESUME_EXTRACT\t<skipped>
//	@@REPORT\t<payload>
//	@@ERROR\t<message>
//
// Anything else, including marker lines with unknown tags or malformed
// numeric fields, is passed through as a plain log event, never dropped.
// -----------------------------------------------------------------------

package progress

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

const markerPrefix = "@@"

// Marker tags recognised by the decoder
const (
	tagSync          = "SYNC"
	tagExtract       = "EXTRACT"
	tagResumeSync    = "RESUME_SYNC"
	tagResumeExtract = "RESUME_EXTRACT"
	tagReport        = "REPORT"
	tagError         = "ERROR"
)

// percentPattern matches the legacy "NN% (done/total)" textual progress
// format emitted by producers that predate the structured markers.
var percentPattern = regexp.MustCompile(`(\d{1,3})%\s*\((\d+)/(\d+)\)`)

// EmitFunc receives each decoded event in stream order
type EmitFunc func(event models.ProgressEvent)

// Decoder classifies lines of a job's mixed output stream into typed
// progress events. It implements io.Writer so it can be wired directly into
// an exec.Cmd output pipe; incomplete trailing data is buffered across
// writes and only complete lines are classified.
//
// Not safe for concurrent use; each stream gets its own Decoder.
type Decoder struct {
	emit        EmitFunc
	partial     strings.Builder
	lastPercent int
}

// NewDecoder creates a decoder delivering events to emit
func NewDecoder(emit EmitFunc) *Decoder {
	return &Decoder{
		emit:        emit,
		lastPercent: -1,
	}
}

// Write consumes one chunk of stream data. Chunk boundaries are arbitrary:
// a marker line split across two writes decodes identically to the whole
// line arriving at once.
func (d *Decoder) Write(p []byte) (int, error) {
	d.partial.WriteString(string(p))

	data := d.partial.String()
	d.partial.Reset()

	for {
		idx := strings.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(data[:idx], "\r")
		data = data[idx+1:]
		d.decodeLine(line)
	}

	// Keep the incomplete trailing line for the next write
	d.partial.WriteString(data)

	return len(p), nil
}

// Flush classifies any buffered trailing data as a final line. Call once
// after the stream has ended.
func (d *Decoder) Flush() {
	if d.partial.Len() == 0 {
		return
	}
	line := strings.TrimSuffix(d.partial.String(), "\r")
	d.partial.Reset()
	d.decodeLine(line)
}

// decodeLine classifies one complete line
func (d *Decoder) decodeLine(line string) {
	if line == "" {
		return
	}

	if strings.HasPrefix(line, markerPrefix) {
		if event, ok := d.decodeMarker(line); ok {
			d.emit(event)
			return
		}
		// Unrecognized or malformed marker: pass through as log text
		d.emit(models.ProgressEvent{Type: models.EventLog, Message: line})
		return
	}

	// Fallback for producers without structured markers: scan for the
	// generic "NN% (done/total)" pattern, emitting only when the
	// percentage changes so repeated status text does not flood events.
	if m := percentPattern.FindStringSubmatch(line); m != nil {
		percent, err1 := strconv.Atoi(m[1])
		done, err2 := strconv.Atoi(m[2])
		total, err3 := strconv.Atoi(m[3])
		if err1 == nil && err2 == nil && err3 == nil && percent != d.lastPercent {
			d.lastPercent = percent
			d.emit(models.ProgressEvent{
				Type:    models.EventProgress,
				Percent: percent,
				Done:    done,
				Total:   total,
			})
		}
		return
	}

	d.emit(models.ProgressEvent{Type: models.EventLog, Message: line})
}

// decodeMarker parses a reserved-prefix line. Returns ok=false when the tag
// is unknown or a numeric field is malformed, in which case the caller
// downgrades the line to a log event.
func (d *Decoder) decodeMarker(line string) (models.ProgressEvent, bool) {
	fields := strings.Split(strings.TrimPrefix(line, markerPrefix), "\t")
	tag := fields[0]
	args := fields[1:]

	switch tag {
	case tagSync, tagExtract:
		if len(args) < 2 {
			return models.ProgressEvent{}, false
		}
		done, err1 := strconv.Atoi(args[0])
		total, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			return models.ProgressEvent{}, false
		}
		eventType := models.EventSyncProgress
		if tag == tagExtract {
			eventType = models.EventExtractProgress
		}
		return models.ProgressEvent{Type: eventType, Done: done, Total: total}, true

	case tagResumeSync, tagResumeExtract:
		if len(args) < 1 {
			return models.ProgressEvent{}, false
		}
		skipped, err := strconv.Atoi(args[0])
		if err != nil {
			return models.ProgressEvent{}, false
		}
		eventType := models.EventResumeSkipSync
		if tag == tagResumeExtract {
			eventType = models.EventResumeSkipExtract
		}
		return models.ProgressEvent{Type: eventType, Skipped: skipped}, true

	case tagReport:
		if len(args) < 1 {
			return models.ProgressEvent{}, false
		}
		return models.ProgressEvent{Type: models.EventReport, Payload: strings.Join(args, "\t")}, true

	case tagError:
		if len(args) < 1 {
			return models.ProgressEvent{}, false
		}
		return models.ProgressEvent{Type: models.EventError, Message: strings.Join(args, "\t")}, true
	}

	return models.ProgressEvent{}, false
}
