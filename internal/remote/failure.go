// Package remote classifies failures of calls to hosted AI services.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/gorilla/websocket"
	"github.com/openai/openai-go"
)

// Kind 区分远程调用失败的类型。
type Kind string

const (
	CredentialInvalid   Kind = "credential_invalid"
	ConnectivityFailure Kind = "connectivity_failure"
	SynthesisFailure    Kind = "synthesis_failure"
	UnclassifiedFailure Kind = "unclassified_failure"
)

// Failure is the only error shape that crosses a remote-call boundary.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s: %s", f.Op, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// UserMessage 返回适合直接展示给用户的提示。
func (f *Failure) UserMessage() string {
	if f.Message != "" {
		return f.Message
	}
	return defaultMessage(f.Kind)
}

// New builds a Failure of a fixed kind.
func New(kind Kind, op string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Message: defaultMessage(kind), Err: err}
}

// Synthesis wraps any speech provider error as a SynthesisFailure, keeping the cause text.
func Synthesis(op string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) && f.Kind == SynthesisFailure {
		return f
	}
	msg := defaultMessage(SynthesisFailure)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Failure{Kind: SynthesisFailure, Op: op, Message: msg, Err: err}
}

// Classify maps a transport error onto a failure kind.
func Classify(op string, err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	return New(kindOf(err), op, err)
}

// Recovered turns a recovered panic value into an unclassified failure.
func Recovered(op string, v any) *Failure {
	return New(UnclassifiedFailure, op, fmt.Errorf("panic: %v", v))
}

func kindOf(err error) Kind {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return kindOfStatus(apiErr.StatusCode)
	}

	var status StatusError
	if errors.As(err, &status) {
		return kindOfStatus(status.StatusCode())
	}

	if errors.Is(err, websocket.ErrBadHandshake) {
		return ConnectivityFailure
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ConnectivityFailure
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ConnectivityFailure
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ConnectivityFailure
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ConnectivityFailure
	}

	words := normalizeWords(err.Error())
	for _, hint := range credentialHints {
		if containsPhrase(words, hint) {
			return CredentialInvalid
		}
	}
	for _, hint := range connectivityHints {
		if containsPhrase(words, hint) {
			return ConnectivityFailure
		}
	}

	return UnclassifiedFailure
}

// StatusError is implemented by transport errors that carry an HTTP status code.
type StatusError interface {
	error
	StatusCode() int
}

func kindOfStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return CredentialInvalid
	case code == http.StatusRequestTimeout || code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout:
		return ConnectivityFailure
	default:
		return UnclassifiedFailure
	}
}

// Hints are matched as whole words, so "unauthorized" never matches inside a longer word.
var credentialHints = []string{
	"unauthorized",
	"authentication",
	"authenticationerror",
	"invalid api key",
	"incorrect api key",
	"access denied",
	"accessdenied",
	"invalid token",
}

var connectivityHints = []string{
	"connection refused",
	"no such host",
	"i/o timeout",
	"connection reset",
	"network is unreachable",
	"tls handshake",
}

// normalizeWords lowercases s and joins its letter/digit runs with single spaces, padded
// on both ends.
func normalizeWords(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

func containsPhrase(words, phrase string) bool {
	return strings.Contains(words, normalizeWords(phrase))
}

func defaultMessage(kind Kind) string {
	switch kind {
	case CredentialInvalid:
		return "API 凭证无效，请检查密钥配置 (invalid API credentials)"
	case ConnectivityFailure:
		return "无法连接到 AI 服务，请检查网络后重新发送 (cannot reach the AI service)"
	case SynthesisFailure:
		return "语音合成失败 (speech synthesis failed)"
	default:
		return "发生未知错误，请稍后重试 (something went wrong)"
	}
}
