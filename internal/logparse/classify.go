// Package logparse turns raw Yii trace log lines into structured events.
package logparse

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/verte-zerg/yiiprof/internal/model"
)

var (
	// ErrUnstructured reports a line that is not a structured record. Such
	// lines continue the message of the previous record.
	ErrUnstructured = errors.New("line is not a structured record")
	// ErrUnparseableTimestamp reports a structured line with a bad datetime.
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
)

// recordPattern matches
//
//	<datetime> [ip][user][session][flag][category]message
//
// Bracket groups are greedy, so a message containing "][" shifts fields the
// same way the Yii viewer always has.
var recordPattern = regexp.MustCompile(`^(.+\s.+?)\s\[(.+)\]\[(.+)\]\[(.+)\]\[(.+)\]\[(.+)\](.+)$`)

// Classify parses one line. It returns ErrUnstructured when the line does not
// match the record grammar and an error wrapping ErrUnparseableTimestamp when
// the datetime field cannot be read.
func Classify(line string) (model.LogEvent, error) {
	m := recordPattern.FindStringSubmatch(line)
	if m == nil {
		return model.LogEvent{}, ErrUnstructured
	}
	ts, err := ParseTimestamp(m[1])
	if err != nil {
		return model.LogEvent{}, err
	}
	return model.LogEvent{
		Timestamp:     ts,
		ClientAddress: m[2],
		User:          m[3],
		SessionID:     m[4],
		Flag:          ParseFlag(m[5]),
		RawFlag:       m[5],
		Category:      m[6],
		Message:       m[7],
	}, nil
}

// ParseFlag maps the flag field to a Flag. Matching is exact.
func ParseFlag(raw string) model.Flag {
	switch raw {
	case model.FlagBeginLiteral:
		return model.FlagBegin
	case model.FlagEndLiteral:
		return model.FlagEnd
	default:
		return model.FlagOther
	}
}

// LineError ties a classification error to its position in a stream.
type LineError struct {
	Stream string
	Line   int
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Stream, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
