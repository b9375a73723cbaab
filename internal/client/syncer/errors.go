package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// ErrInProgress is returned when a cycle is requested while one is running.
var ErrInProgress = errors.New("sync already in progress")

// Kind classifies a sync failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindServer
	KindAuth
	KindParse
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	case KindParse:
		return "parse"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// Remediation is the user action suggested for a failure.
type Remediation int

const (
	RemediationRetry Remediation = iota
	RemediationGoOffline
	RemediationReLogin
)

func (r Remediation) String() string {
	switch r {
	case RemediationGoOffline:
		return "work offline"
	case RemediationReLogin:
		return "log in again"
	}
	return "retry"
}

// Remediation maps a kind to the suggested user action.
func (k Kind) Remediation() Remediation {
	switch k {
	case KindNetwork:
		return RemediationGoOffline
	case KindAuth:
		return RemediationReLogin
	}
	return RemediationRetry
}

// Error is a failed sync step.
type Error struct {
	Kind Kind
	Step Step
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sync %s failed (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(step Step, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Kind: Classify(err), Step: step, Err: err}
}

// Classify maps an error to a Kind. Typed errors are inspected first; the
// message is consulted only as a last resort.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	var status *client.StatusError
	if errors.As(err, &status) {
		switch {
		case status.Code == http.StatusUnauthorized || status.Code == http.StatusForbidden:
			return KindAuth
		case status.Code == http.StatusConflict:
			return KindConflict
		case status.Code >= http.StatusInternalServerError:
			return KindServer
		}
		return KindUnknown
	}

	switch {
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return KindAuth
	case errors.Is(err, client.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	case errors.Is(err, client.ErrMalformedResponse):
		return KindParse
	case errors.Is(err, common.ErrVersionConflict):
		return KindConflict
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindParse
	}

	return classifyMessage(err.Error())
}

func classifyMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	contains := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("401", "403", "unauthorized", "forbidden"):
		return KindAuth
	case contains("timeout", "connection refused", "no such host", "network is unreachable", "connection reset"):
		return KindNetwork
	case contains("500", "502", "503", "504", "internal server error"):
		return KindServer
	case contains("json", "unexpected end", "invalid character"):
		return KindParse
	case contains("conflict"):
		return KindConflict
	}
	return KindUnknown
}
