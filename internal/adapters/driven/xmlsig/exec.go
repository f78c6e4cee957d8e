// Package xmlsig provides signature verifier adapters: an external
// process wrapper around xmlsec1-style verifiers and an in-process
// goxmldsig verifier.
package xmlsig

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/gabrimonfa/spid-saml-check/internal/core/ports"
)

// ExecVerifier invokes an external verifier process. The process is the
// authority on XSD and XML-signature validity; this adapter only
// interprets its exit code and captures its output. Exit code zero means
// success; anything else is a validation failure whose stdout/stderr
// text is surfaced verbatim.
type ExecVerifier struct {
	command string
	args    []string
	logger  *zap.Logger
}

// NewExecVerifier wraps a verifier command. The message-type and role
// tags are appended to args on every invocation, matching the external
// script's calling convention.
func NewExecVerifier(command string, args []string, logger *zap.Logger) *ExecVerifier {
	return &ExecVerifier{command: command, args: args, logger: logger}
}

// Verify runs the external process and returns its structured result.
func (v *ExecVerifier) Verify(ctx context.Context, messageTag, roleTag string) ports.VerifyResult {
	args := append(append([]string{}, v.args...), messageTag, roleTag)
	cmd := exec.CommandContext(ctx, v.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		if v.logger != nil {
			v.logger.Debug("external verifier succeeded",
				zap.String("command", v.command),
				zap.String("message", messageTag),
				zap.String("role", roleTag))
		}
		return ports.VerifyResult{OK: true, Output: stdout.String()}
	}

	if v.logger != nil {
		v.logger.Warn("external verifier failed",
			zap.String("command", v.command),
			zap.String("message", messageTag),
			zap.String("role", roleTag),
			zap.Error(err))
	}

	var lines []string
	lines = append(lines, prefixLines("stdout: ", stdout.String())...)
	lines = append(lines, prefixLines("stderr: ", stderr.String())...)
	return ports.VerifyResult{OK: false, Output: strings.Join(lines, "\n")}
}

// prefixLines prefixes every non-empty line of text, preserving the
// verifier's diagnostic output verbatim.
func prefixLines(prefix, text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		out = append(out, prefix+line)
	}
	return out
}

var _ ports.SignatureVerifier = (*ExecVerifier)(nil)
