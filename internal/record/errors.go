package record

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies why a version failed.
type Kind int

const (
	KindAcquisition Kind = iota + 1
	KindRewrite
	KindBuild
	KindDiscovery
	KindInvocation
	KindTimeout
)

var (
	ErrAcquisition = errors.New("acquisition failed")
	ErrRewrite     = errors.New("rewrite failed")
	ErrBuild       = errors.New("build failed")
	ErrDiscovery   = errors.New("discovery failed")
	ErrInvocation  = errors.New("invocation failed")
	ErrTimeout     = errors.New("timed out")
)

var (
	// ErrNothingToBuild is reported when a descriptor declares no target.
	ErrNothingToBuild = errors.New("no build target declared")
	ErrNoSources      = errors.New("no source files found")
	ErrNoBitcode      = errors.New("no linked bitcode artifact found")
	ErrAmbiguous      = errors.New("ambiguous linked bitcode artifacts")
)

func (k Kind) sentinel() error {
	switch k {
	case KindAcquisition:
		return ErrAcquisition
	case KindRewrite:
		return ErrRewrite
	case KindBuild:
		return ErrBuild
	case KindDiscovery:
		return ErrDiscovery
	case KindInvocation:
		return ErrInvocation
	case KindTimeout:
		return ErrTimeout
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindAcquisition:
		return "acquisition"
	case KindRewrite:
		return "rewrite"
	case KindBuild:
		return "build"
	case KindDiscovery:
		return "discovery"
	case KindInvocation:
		return "invocation"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// Error is a classified pipeline failure. Output holds the combined
// stdout/stderr of the external tool, if one was involved.
type Error struct {
	Kind    Kind
	Version string
	Op      string
	Output  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Version != "" {
		b.WriteString(" [")
		b.WriteString(e.Version)
		b.WriteString("]")
	}
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of e's kind, so errors.Is(err, ErrBuild) works.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// NewError classifies err as kind, or as KindTimeout when err was caused
// by an expired deadline.
func NewError(kind Kind, version, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Version: version, Op: op, Err: err}
}
